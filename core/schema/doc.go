/*
Package schema defines the core types of the custom field engine.

A module (class, student, teacher, ...) owns sections; a section owns an
ordered list of fields. Fields seeded by the module definition are system
fields and are locked; administrators add custom fields next to them.

# Module Definition

A module definition in YAML:

	module: teacher
	roles: [admin, principal, teacherSelf]

	sections:
	  - id: personal-info
	    name: Personal Information
	    tab: profile
	    fields:
	      - label: First Name
	        type: text
	        required: true
	        visibility: { admin: true, principal: true, teacherSelf: true }
	      - label: Gender
	        type: dropdown
	        constraints: { options: [Male, Female, Other] }
	        visibility: { admin: true, principal: true, teacherSelf: true }

Seed fields may omit key (derived from the label with DeriveKey) and id
(defaults to "<section id>.<key>").

# Field Types

The set of types is closed:

  - text:     single line; max_length
  - textarea: multi line; max_length
  - number:   min, max
  - date:     min_date, max_date (YYYY-MM-DD)
  - dropdown: options (required, unique, non-blank), allow_multiple
  - checkbox: default_checked
  - toggle:   default_checked
  - file:     allowed_extensions, max_size_bytes, allow_multiple

Describe returns the shape of a type and ValidateConstraints checks a bag
against it.

# Visibility

Every field carries an explicit entry for each of the module's roles. There
are no implicit defaults; a matrix missing a role is invalid.

# Parsing

Load modules from YAML:

	mod, err := schema.ParseFile("modules/teacher.yaml")
	modules, err := schema.ParseDir("modules/")

All modules are validated on parse. Invalid modules return an error.
*/
package schema
