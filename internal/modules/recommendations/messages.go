package recommendations

import (
	"fmt"
	"strings"
)

// Template ids.
const (
	TemplateCashGap       = "cash_gap_deferral"
	TemplateARCollection  = "ar_collection"
	TemplateExpenseGrowth = "expense_growth"
	TemplateConcentration = "customer_concentration"
)

// Texts holds the four renderable strings of one template. Placeholders
// use {param} syntax and are substituted from Message.Params.
type Texts struct {
	Action         string
	Basis          string
	ExpectedEffect string
	Risk           string
}

// Catalog maps template ids to localized texts. Swapping the catalog
// changes the output language without touching generator logic.
type Catalog map[string]Texts

// English is the default catalog.
var English = Catalog{
	TemplateCashGap: {
		Action:         "Defer payments totalling {deferrable_amount} to cover the cash gap on {gap_date}",
		Basis:          "Forecasted cash gap of {gap_amount} on {gap_date}. Payments of {upcoming_total} are scheduled before that date",
		ExpectedEffect: "Closes the gap on {gap_date} and preserves liquidity",
		Risk:           "Deferral must be agreed with the suppliers involved",
	},
	TemplateARCollection: {
		Action:         "Accelerate collection of {overdue_amount} receivable from {counterparty}",
		Basis:          "Overdue receivable from {counterparty}: {overdue_amount} (more than 30 days past due)",
		ExpectedEffect: "Frees up {overdue_amount} and improves liquidity",
		Risk:           "Check contractual terms and document status first",
	},
	TemplateExpenseGrowth: {
		Action:         "Review expense growth: up {growth_pct}% versus the previous month",
		Basis:          "Current month expenses: {current_total}, previous month: {previous_total}",
		ExpectedEffect: "Identifies the growth drivers and reduces spend",
		Risk:           "May be seasonal or driven by one-off payments",
	},
	TemplateConcentration: {
		Action:         "Diversify the customer base: top-3 customers generate {concentration_pct}% of revenue",
		Basis:          "Revenue concentration over the trailing 90 days: {concentration_pct}% from the top-3 customers",
		ExpectedEffect: "Reduces dependence on key customers",
		Risk:           "Losing one key customer could materially hurt the business",
	},
}

// Render substitutes the message params into the catalog texts.
// Unknown template ids render as empty texts rather than failing the
// whole recommendation run.
func (c Catalog) Render(msg Message) Texts {
	texts, ok := c[msg.Template]
	if !ok {
		return Texts{}
	}
	return Texts{
		Action:         substitute(texts.Action, msg.Params),
		Basis:          substitute(texts.Basis, msg.Params),
		ExpectedEffect: substitute(texts.ExpectedEffect, msg.Params),
		Risk:           substitute(texts.Risk, msg.Params),
	}
}

func substitute(text string, params map[string]string) string {
	if len(params) == 0 {
		return text
	}
	pairs := make([]string, 0, len(params)*2)
	for key, value := range params {
		pairs = append(pairs, fmt.Sprintf("{%s}", key), value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
