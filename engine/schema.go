package engine

import (
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/meikuraledutech/flow"
)

// Schemas describe the typed part of each node config. Fields that accept
// either a literal of any type or a script value are not listed as
// properties, but may still be required.

var conditionSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"operator": {Type: jsonschema.String},
		"chain":    {Type: jsonschema.String},
	},
	Required: []string{"lhs", "operator"},
}

var conditionsSchema = jsonschema.Definition{
	Type:  jsonschema.Array,
	Items: &conditionSchema,
}

func object(required []string, props map[string]jsonschema.Definition) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.Object, Properties: props, Required: required}
}

func arraySchema() jsonschema.Definition {
	return object([]string{"variable"}, map[string]jsonschema.Definition{
		"variable":   {Type: jsonschema.String},
		"useParams":  {Type: jsonschema.Boolean},
		"conditions": conditionsSchema,
	})
}

func dbSchema(required ...string) jsonschema.Definition {
	return object(append([]string{"connectionId"}, required...), map[string]jsonschema.Definition{
		"connectionId": {Type: jsonschema.String},
		"table":        {Type: jsonschema.String},
		"conditions":   conditionsSchema,
		"fields":       {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
		"orderBy":      {Type: jsonschema.String},
		"desc":         {Type: jsonschema.Boolean},
		"limit":        {Type: jsonschema.Integer},
		"offset":       {Type: jsonschema.Integer},
		"data":         {Type: jsonschema.Object},
		"useParams":    {Type: jsonschema.Boolean},
		"script":       {Type: jsonschema.String},
	})
}

func configSchemas() map[flow.NodeType]jsonschema.Definition {
	return map[flow.NodeType]jsonschema.Definition{
		flow.NodeEntrypoint: object(nil, nil),
		flow.NodeIf: object([]string{"conditions"}, map[string]jsonschema.Definition{
			"conditions": conditionsSchema,
		}),
		flow.NodeGetVar: object([]string{"name"}, map[string]jsonschema.Definition{
			"name": {Type: jsonschema.String},
		}),
		flow.NodeSetVar: object([]string{"name"}, map[string]jsonschema.Definition{
			"name":      {Type: jsonschema.String},
			"useParams": {Type: jsonschema.Boolean},
		}),
		flow.NodeTransformer: object(nil, map[string]jsonschema.Definition{
			"fields":    {Type: jsonschema.Object},
			"useScript": {Type: jsonschema.Boolean},
			"script":    {Type: jsonschema.String},
		}),
		flow.NodeArrayPush:    arraySchema(),
		flow.NodeArrayPop:     arraySchema(),
		flow.NodeArrayShift:   arraySchema(),
		flow.NodeArrayUnshift: arraySchema(),
		flow.NodeArrayFilter:  arraySchema(),
		flow.NodeForLoop:      object([]string{"end"}, nil),
		flow.NodeForEachLoop: object(nil, map[string]jsonschema.Definition{
			"useParams": {Type: jsonschema.Boolean},
		}),
		flow.NodeTransaction: object([]string{"connectionId"}, map[string]jsonschema.Definition{
			"connectionId": {Type: jsonschema.String},
		}),
		flow.NodeDBGetSingle:  dbSchema("table"),
		flow.NodeDBGetAll:     dbSchema("table"),
		flow.NodeDBInsert:     dbSchema("table"),
		flow.NodeDBInsertBulk: dbSchema("table"),
		flow.NodeDBUpdate:     dbSchema("table"),
		flow.NodeDBDelete:     dbSchema("table"),
		flow.NodeDBNative:     dbSchema("script"),
		flow.NodeHTTPRequest: object([]string{"url"}, map[string]jsonschema.Definition{
			"method":  {Type: jsonschema.String},
			"url":     {Type: jsonschema.String},
			"headers": {Type: jsonschema.Object},
			"query":   {Type: jsonschema.Object},
		}),
		flow.NodeResponse: object(nil, map[string]jsonschema.Definition{
			"httpCode": {Type: jsonschema.Integer},
		}),
		flow.NodeErrorHandler: object(nil, nil),
		flow.NodeLogging: object(nil, map[string]jsonschema.Definition{
			"useParams":     {Type: jsonschema.Boolean},
			"level":         {Type: jsonschema.String},
			"integrationId": {Type: jsonschema.String},
		}),
	}
}
