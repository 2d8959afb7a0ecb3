package review

// FilterProcessClause short-circuits purely procedural requirements
// (bid-opening mechanics, on-site sealing, submission logistics)
// before any mapping or evaluation. The returned item, when non-nil,
// bypasses every later stage.
func FilterProcessClause(req Requirement, keywords *KeywordTable) *ReviewItem {
	if !keywords.IsProcessClause(req.Text) {
		return nil
	}
	return &ReviewItem{
		RequirementID: req.RequirementID,
		Dimension:     req.Dimension,
		Status:        StatusPending,
		IsHard:        req.IsHard,
		Remark:        "程序性条款（开标/递交/密封等流程要求），不参与自动审查",
		Evaluator:     EvaluatorOutOfScope,
		Trace:         Trace{Scope: "PROCESS", Note: "keyword table " + keywords.Version},
	}
}
