package classify

import "github.com/doctriage/doctriage/internal/core/domain"

// BuiltinStrategies returns the production rule sets shipped with the
// service: financial and healthcare. Deployments extend or replace them via
// the strategy file loader.
func BuiltinStrategies() []domain.IndustryStrategy {
	return []domain.IndustryStrategy{financialStrategy(), healthcareStrategy()}
}

func financialStrategy() domain.IndustryStrategy {
	return domain.IndustryStrategy{
		Industry: "financial",
		DocumentTypes: []string{
			"bank_statement",
			"credit_card_statement",
			"invoice",
			"tax_return",
			"payroll",
			"loan_application",
			"financial_report",
		},
		Keywords: map[string][]string{
			"bank_statement": {
				"account balance", "transaction history", "deposit", "withdrawal",
				"account number", "statement period", "opening balance", "closing balance",
				"statement", "balance", "account",
			},
			"credit_card_statement": {
				"credit limit", "minimum payment", "statement balance", "apr",
				"credit card", "card number", "payment due date", "interest charges",
			},
			"invoice": {
				"invoice number", "bill to", "payment terms", "due date",
				"subtotal", "total amount", "tax", "invoice date",
				"invoice", "due", "total",
			},
			"tax_return": {
				"tax year", "taxable income", "deductions", "tax paid",
				"tax return", "social security", "filing status", "irs",
			},
			"payroll": {
				"salary", "wages", "net pay", "gross pay",
				"pay period", "employee id", "payroll date",
			},
			"loan_application": {
				"loan amount", "interest rate", "collateral", "borrower",
				"credit score", "monthly payment", "application date",
			},
			"financial_report": {
				"balance sheet", "income statement", "cash flow", "assets",
				"liabilities", "equity", "profit", "loss",
			},
		},
	}
}

func healthcareStrategy() domain.IndustryStrategy {
	return domain.IndustryStrategy{
		Industry: "healthcare",
		DocumentTypes: []string{
			"medical_record",
			"prescription",
			"lab_report",
			"medical_bill",
			"insurance_claim",
			"medical_imaging",
			"discharge_summary",
			"vaccination_record",
		},
		Keywords: map[string][]string{
			"medical_record": {
				"patient history", "vital signs", "medical record number", "chief complaint",
				"diagnosis", "treatment plan", "allergies", "medications",
				"physical examination", "medical history", "family history", "social history",
			},
			"prescription": {
				"rx", "prescribe", "dosage", "refill", "pharmacy", "sig",
				"dispense", "prescription", "medication", "take as directed",
				"tablets", "capsules",
			},
			"lab_report": {
				"lab results", "test date", "reference range", "specimen",
				"laboratory", "collected", "test name", "values",
				"units", "normal range", "analysis", "methodology",
			},
			"medical_bill": {
				"amount due", "service date", "billing code", "charges",
				"insurance", "payment", "cpt code", "provider",
				"itemized charges", "adjustment", "balance", "due date",
			},
			"insurance_claim": {
				"claim number", "policy number", "coverage", "insured",
				"benefits", "authorization", "diagnosis code", "icd code",
				"subscriber", "group number", "pre-authorization",
			},
			"medical_imaging": {
				"radiology", "imaging", "scan", "x-ray", "mri", "ct scan",
				"ultrasound", "impression", "technique", "contrast",
				"findings", "comparison",
			},
			"discharge_summary": {
				"discharge date", "admission date", "hospital course", "follow up",
				"discharge diagnosis", "disposition", "follow-up care",
				"discharge instructions", "admission diagnosis", "hospital stay",
			},
			"vaccination_record": {
				"vaccine", "immunization", "dose", "vaccination date",
				"lot number", "administered", "next due date", "manufacturer",
				"injection site", "vaccine type", "immunity", "booster",
			},
		},
	}
}
