// Package schemas embeds the JSON schemas for azchain files.
package schemas

import _ "embed"

//go:embed plan.schema.json
var PlanSchemaJSON string
