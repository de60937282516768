package model

import "strings"

// RawLineItem is one charge row as produced by the structure parser,
// before classification.
type RawLineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// ParsedInvoice is the transient output of the structure parser. It is
// consumed by the classifier and scorer and embedded into the final
// ProcessedInvoice; it is never persisted on its own.
type ParsedInvoice struct {
	VendorName    string        `json:"vendor_name"`
	VendorAddress string        `json:"vendor_address"`
	InvoiceNumber string        `json:"invoice_number"`
	InvoiceDate   string        `json:"invoice_date"`
	DueDate       string        `json:"due_date"`
	TotalAmount   float64       `json:"total_amount"`
	LineItems     []RawLineItem `json:"line_items"`
}

// Normalize trims whitespace on string fields so that downstream prompt
// building and vendor-pattern matching see clean values. Missing fields
// stay at their zero values (empty string / 0), which is the documented
// default for absent invoice data.
func (p *ParsedInvoice) Normalize() {
	p.VendorName = strings.TrimSpace(p.VendorName)
	p.VendorAddress = strings.TrimSpace(p.VendorAddress)
	p.InvoiceNumber = strings.TrimSpace(p.InvoiceNumber)
	p.InvoiceDate = strings.TrimSpace(p.InvoiceDate)
	p.DueDate = strings.TrimSpace(p.DueDate)
	for i := range p.LineItems {
		p.LineItems[i].Description = strings.TrimSpace(p.LineItems[i].Description)
	}
}

// ClassifiedLineItem is a line item with a suggested GL assignment.
// Ordering matches the source RawLineItem slice positionally.
type ClassifiedLineItem struct {
	Description        string  `json:"description"`
	Amount             float64 `json:"amount"`
	SuggestedGLAccount string  `json:"suggested_gl_account"`
	SuggestedCategory  string  `json:"suggested_category"`
	Confidence         float64 `json:"confidence"`
	PropertyAssignment string  `json:"property_assignment,omitempty"`
}

// ProcessedInvoice is the structured result returned to the caller and
// embedded in the audit record.
type ProcessedInvoice struct {
	VendorName      string               `json:"vendor_name"`
	VendorAddress   string               `json:"vendor_address,omitempty"`
	InvoiceNumber   string               `json:"invoice_number"`
	InvoiceDate     string               `json:"invoice_date"`
	DueDate         string               `json:"due_date"`
	TotalAmount     float64              `json:"total_amount"`
	LineItems       []ClassifiedLineItem `json:"line_items"`
	ConfidenceScore float64              `json:"confidence_score"`
	RawText         string               `json:"raw_text"`
}
