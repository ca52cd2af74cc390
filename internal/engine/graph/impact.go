package graph

// ImpactReport lists the batch members that must be rebuilt when the
// target modules change.
type ImpactReport struct {
	Targets             []string
	DirectImporters     []string
	TransitiveImporters []string
}

// Affected returns targets and importers together, in input order.
func (r ImpactReport) Affected(g *BatchGraph) []string {
	all := make([]string, 0, len(r.Targets)+len(r.DirectImporters)+len(r.TransitiveImporters))
	all = append(all, r.Targets...)
	all = append(all, r.DirectImporters...)
	all = append(all, r.TransitiveImporters...)
	g.sortByInput(all)
	return all
}

// AnalyzeImpact walks the importedBy edges from every target. Names that
// are not batch members are ignored.
func (g *BatchGraph) AnalyzeImpact(modules ...string) ImpactReport {
	var report ImpactReport

	seen := make(map[string]bool, len(modules))
	for _, m := range modules {
		if _, ok := g.scripts[m]; ok && !seen[m] {
			seen[m] = true
			report.Targets = append(report.Targets, m)
		}
	}
	g.sortByInput(report.Targets)

	for _, target := range report.Targets {
		for importer := range g.importedBy[target] {
			if !seen[importer] {
				seen[importer] = true
				report.DirectImporters = append(report.DirectImporters, importer)
			}
		}
	}
	g.sortByInput(report.DirectImporters)

	queue := append([]string(nil), report.DirectImporters...)
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for importer := range g.importedBy[curr] {
			if seen[importer] {
				continue
			}
			seen[importer] = true
			report.TransitiveImporters = append(report.TransitiveImporters, importer)
			queue = append(queue, importer)
		}
	}
	g.sortByInput(report.TransitiveImporters)

	return report
}
