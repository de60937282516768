// Package prompt holds the versioned LLM prompt templates used by the
// invoice pipeline. Templates ship with embedded defaults and can be
// overridden from a YAML file so taxonomy changes don't require a deploy.
package prompt

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Templates is one versioned set of pipeline prompts. The version is
// recorded on every audit row next to the model version.
type Templates struct {
	Version  string `yaml:"version"`
	Extract  string `yaml:"extract"`
	Parse    string `yaml:"parse"`
	Classify string `yaml:"classify"`
}

const defaultVersion = "v1"

const defaultExtract = `Extract all text visible in this invoice image. Preserve the document structure: vendor header, addresses, invoice metadata, the line item table, and totals. Output plain text optimized for machine parsing. Do not summarize or omit anything.`

const defaultParse = `You parse invoice text into JSON for a property-management accounting system. Respond with exactly one JSON object, no prose, matching this schema:
{
  "vendor_name": string,
  "vendor_address": string,
  "invoice_number": string,
  "invoice_date": string,
  "due_date": string,
  "total_amount": number,
  "line_items": [{"description": string, "quantity": number, "unit_price": number, "amount": number}]
}
Use empty strings and 0 for fields that are not present. Common expense domains for these invoices: utilities, maintenance, landscaping, professional services, insurance, supplies, security, trash removal.`

// defaultClassify has two format verbs: the GL account listing and the
// vendor history hints.
const defaultClassify = `You assign general-ledger accounts to invoice line items for a homeowners association.

Available GL accounts:
%s

Standard HOA expense code ranges:
6100-6199 Utilities
6200-6299 Repairs & Maintenance
6300-6399 Landscaping & Grounds
6400-6499 Professional Services
6500-6599 Insurance
6600-6699 Administrative
7000-7999 Capital & Reserves
%s
For every input line item, respond with exactly one JSON object, no prose:
{"classified_items": [{"index": number, "description": string, "amount": number, "suggested_gl_account": string, "suggested_category": string, "confidence": number}]}
The index echoes the input item's position. suggested_gl_account must be drawn from the available accounts (empty string if none fits). confidence is between 0.1 and 1.0.`

// Defaults returns the embedded prompt templates.
func Defaults() *Templates {
	return &Templates{
		Version:  defaultVersion,
		Extract:  defaultExtract,
		Parse:    defaultParse,
		Classify: defaultClassify,
	}
}

// Load reads templates from a YAML file, falling back to the embedded
// defaults for any field the file leaves empty. An empty path returns the
// defaults unchanged.
func Load(path string) (*Templates, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompt: read %s", path)
	}

	var overlay Templates
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, eris.Wrapf(err, "prompt: parse %s", path)
	}

	if overlay.Version != "" {
		t.Version = overlay.Version
	}
	if overlay.Extract != "" {
		t.Extract = overlay.Extract
	}
	if overlay.Parse != "" {
		t.Parse = overlay.Parse
	}
	if overlay.Classify != "" {
		t.Classify = overlay.Classify
	}
	return t, nil
}
