package domain

import (
	"strings"
	"time"
)

// RepairClassification is the remedy path chosen by the technician.
type RepairClassification string

const (
	ClassificationDirectRepair  RepairClassification = "direct_repair"
	ClassificationNeedSparepart RepairClassification = "need_sparepart"
	ClassificationNeedVendor    RepairClassification = "need_vendor"
	ClassificationNeedLicense   RepairClassification = "need_license"
	ClassificationUnrepairable  RepairClassification = "unrepairable"
)

// Valid reports whether c is a known classification.
func (c RepairClassification) Valid() bool {
	switch c {
	case ClassificationDirectRepair, ClassificationNeedSparepart, ClassificationNeedVendor,
		ClassificationNeedLicense, ClassificationUnrepairable:
		return true
	}
	return false
}

// NeedsProcurement reports whether the classification calls for work orders.
func (c RepairClassification) NeedsProcurement() bool {
	_, ok := c.PermittedWorkOrderType()
	return ok
}

// PermittedWorkOrderType maps a procurement classification to its work order type.
func (c RepairClassification) PermittedWorkOrderType() (WorkOrderType, bool) {
	switch c {
	case ClassificationNeedSparepart:
		return WorkOrderTypeSparepart, true
	case ClassificationNeedVendor:
		return WorkOrderTypeVendor, true
	case ClassificationNeedLicense:
		return WorkOrderTypeLicense, true
	}
	return "", false
}

// Diagnosis is the single finding attached to a repair ticket.
type Diagnosis struct {
	ProblemCategory     string               `json:"problem_category"`
	Description         string               `json:"description"`
	Classification      RepairClassification `json:"classification"`
	RepairDescription   string               `json:"repair_description,omitempty"`
	UnrepairableReason  string               `json:"unrepairable_reason,omitempty"`
	AlternativeSolution string               `json:"alternative_solution,omitempty"`
	DiagnosedBy         string               `json:"diagnosed_by"`
	DiagnosedAt         time.Time            `json:"diagnosed_at"`
}

// FieldProblem names a field and why it is rejected.
type FieldProblem struct {
	Field  string
	Reason string
}

// Validate checks the conditional fields for the classification.
func (d Diagnosis) Validate() *FieldProblem {
	if strings.TrimSpace(d.ProblemCategory) == "" {
		return &FieldProblem{Field: "problem_category", Reason: "required"}
	}
	if strings.TrimSpace(d.Description) == "" {
		return &FieldProblem{Field: "description", Reason: "required"}
	}
	if !d.Classification.Valid() {
		return &FieldProblem{Field: "classification", Reason: "unknown classification"}
	}
	switch d.Classification {
	case ClassificationDirectRepair:
		if strings.TrimSpace(d.RepairDescription) == "" {
			return &FieldProblem{Field: "repair_description", Reason: "required for direct_repair"}
		}
	case ClassificationUnrepairable:
		if strings.TrimSpace(d.UnrepairableReason) == "" {
			return &FieldProblem{Field: "unrepairable_reason", Reason: "required for unrepairable"}
		}
		if strings.TrimSpace(d.AlternativeSolution) == "" {
			return &FieldProblem{Field: "alternative_solution", Reason: "required for unrepairable"}
		}
	}
	return nil
}
