package store

// schema creates the catalog tables. Type columns hold DataType names, an
// *_arg column holds the argument number of a contextual type.
const schema = `
CREATE TABLE IF NOT EXISTS function (
	id             INTEGER PRIMARY KEY,
	name           TEXT NOT NULL,
	category       TEXT NOT NULL DEFAULT '',
	result_type    TEXT NOT NULL DEFAULT '',
	result_arg     INTEGER NOT NULL DEFAULT 0,
	sql_expression TEXT NOT NULL DEFAULT '',
	variable_args  INTEGER NOT NULL DEFAULT 0,
	max_nesting    INTEGER NOT NULL DEFAULT 0,
	aggregation    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS function_name ON function (name COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS parameter (
	function_id  INTEGER NOT NULL REFERENCES function (id),
	idx          INTEGER NOT NULL,
	name         TEXT NOT NULL,
	value_type   TEXT NOT NULL DEFAULT '',
	value_arg    INTEGER NOT NULL DEFAULT 0,
	optional     INTEGER NOT NULL DEFAULT 0,
	known_values TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (function_id, idx)
);

CREATE TABLE IF NOT EXISTS report_column (
	entity_name             TEXT NOT NULL DEFAULT '',
	entity_id               INTEGER NOT NULL,
	name                    TEXT NOT NULL,
	title                   TEXT NOT NULL DEFAULT '',
	column_id               INTEGER NOT NULL,
	storage_type            TEXT NOT NULL DEFAULT '',
	display_type            TEXT NOT NULL DEFAULT '',
	is_active               INTEGER NOT NULL DEFAULT 0,
	is_selectable           INTEGER NOT NULL DEFAULT 0,
	calculated_field_id     INTEGER NOT NULL DEFAULT 0,
	calculated_field_type   TEXT NOT NULL DEFAULT '',
	calculated_field_active INTEGER NOT NULL DEFAULT 0,
	calculated_field_public INTEGER NOT NULL DEFAULT 0,
	calculated_field_owner  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS report_column_id ON report_column (column_id);

CREATE TABLE IF NOT EXISTS calculated_field (
	id           INTEGER PRIMARY KEY,
	name         TEXT NOT NULL,
	is_active    INTEGER NOT NULL DEFAULT 0,
	is_aggregate INTEGER NOT NULL DEFAULT 0,
	aggregation  TEXT NOT NULL DEFAULT '',
	output_type  TEXT NOT NULL DEFAULT '',
	xml          TEXT NOT NULL DEFAULT '',
	nesting      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS calculated_field_ref (
	field_id     INTEGER NOT NULL REFERENCES calculated_field (id),
	ref_field_id INTEGER NOT NULL,
	PRIMARY KEY (field_id, ref_field_id)
);
`
