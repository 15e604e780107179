// Package sql provides placeholder reconciliation, type inference and statement
// classification for parameterized SQL templates.
package sql

/*
Placeholder Syntax

# Overview

Query templates mark bind slots with a colon-prefixed identifier:

	SELECT * FROM users WHERE id = :id AND status = :status

Placeholder names must:
- Start with a letter or underscore
- Contain only letters, digits and underscores
- Match the pattern :[A-Za-z_][A-Za-z0-9_]*

A colon that touches another colon is never a placeholder, so PostgreSQL casts
such as created_at::date are left alone. A placeholder appearing more than once
in a template is a single bind slot.

# Parameter Keys

Parameter mappings may name a placeholder with or without the marker. Both of
these satisfy :id:

	sql.Params{"id": 42}
	sql.Params{":id": 42}

Before a value reaches a driver its name is normalized to carry exactly one
leading colon (see NormalizeName).

# Reconciliation

Reconcile compares the placeholder set of a template with the keys of a mapping:

	Matched     every placeholder has a key and every key has a placeholder
	HasExtras   every placeholder has a key but some keys are unused
	HasMissing  at least one placeholder has no key (always fatal)

Unused keys are removed with PruneExtras before binding, which strips both the
marked and the unmarked form of each extra.

# Driver Placeholders

Drivers do not share a named-parameter syntax. Rewrite converts a template into
the native style of the target driver and returns the order in which values
must be supplied:

	StyleQuestion  ?     one slot per occurrence (MySQL, SQLite)
	StyleDollar    $N    one slot per distinct name (PostgreSQL)
	StyleAtName    @name one slot per distinct name (SQL Server)

# Limitations

The scanner does not understand string literals. A token like ':x' inside a quoted
string is still treated as a placeholder; FindPlaceholdersInStringLiterals reports
these so callers can warn about them.
*/
