package main

import (
	"github.com/ryanwith/melchi/internal/config"
	"github.com/ryanwith/melchi/internal/warehouse"

	_ "github.com/ryanwith/melchi/internal/duckdb"
	_ "github.com/ryanwith/melchi/internal/snowflake"
)

// app bundles the config and table list every subcommand needs, and
// the two connection configs derived from them.
type app struct {
	cfg        *config.Config
	tables     []warehouse.TableDescriptor
	sourceConn warehouse.ConnectionConfig
	targetConn warehouse.ConnectionConfig
}

func loadApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	tables, err := config.LoadTables(cfg.TablesConfig.Path)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:        cfg,
		tables:     tables,
		sourceConn: cfg.Source.ConnectionConfig(replaceExisting),
		targetConn: cfg.Target.ConnectionConfig(replaceExisting),
	}, nil
}
