package core

// MonthTotals is the month-to-date rollup shown at the top of the budget page.
type MonthTotals struct {
	Income  Money
	Expense Money
}

// Net returns income minus expense; negative when the month is overspent.
func (t MonthTotals) Net() Money {
	return Money{Cents: t.Income.Cents - t.Expense.Cents}
}
