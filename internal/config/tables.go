package config

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/ryanwith/melchi/internal/warehouse"
)

const bom = "﻿"

// LoadTables parses the table-list CSV at path into table descriptors
// (spec.md §6). Header row required; columns database, schema, table,
// cdc_type. A missing cdc_type defaults to FULL_REFRESH; an unknown
// value is an InvalidConfig error naming the three legal values; an
// empty database/schema/table is an InvalidConfig error naming the
// offending row.
func LoadTables(path string) ([]warehouse.TableDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, warehouse.NewConfigError("tables_config", "opening %s: %v", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, warehouse.NewConfigError("tables_config", "reading header of %s: %v", path, err)
	}
	header[0] = strings.TrimPrefix(header[0], bom)
	col, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var tables []warehouse.TableDescriptor
	rowNum := 1
	for {
		rowNum++
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, warehouse.NewConfigError("tables_config", "reading row %d of %s: %v", rowNum, path, err)
		}

		table, err := parseRow(record, col, rowNum)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func columnIndex(header []string) (map[string]int, error) {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"database", "schema", "table"} {
		if _, ok := col[required]; !ok {
			return nil, warehouse.NewConfigError("tables_config", "missing required column %q", required)
		}
	}
	return col, nil
}

func parseRow(record []string, col map[string]int, rowNum int) (warehouse.TableDescriptor, error) {
	field := func(name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	database := field("database")
	schema := field("schema")
	table := field("table")
	if database == "" || schema == "" || table == "" {
		return warehouse.TableDescriptor{}, warehouse.NewConfigError(
			"tables_config", "row %d: database, schema, and table must all be non-empty", rowNum)
	}

	cdcType := field("cdc_type")
	var policy warehouse.CDCPolicy
	if cdcType == "" {
		policy = warehouse.FullRefresh
	} else {
		p, err := warehouse.ParseCDCPolicy(cdcType)
		if err != nil {
			return warehouse.TableDescriptor{}, warehouse.NewConfigError(
				"tables_config", "row %d: %v", rowNum, err)
		}
		policy = p
	}

	descriptor := warehouse.TableDescriptor{Database: database, Schema: schema, Table: table, Policy: policy}
	if err := descriptor.Validate(); err != nil {
		return warehouse.TableDescriptor{}, warehouse.NewConfigError("tables_config", "row %d: %v", rowNum, err)
	}
	return descriptor, nil
}
