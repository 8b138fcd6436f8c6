package catalog

import "dmvagent/internal/domain"

// Evaluate computes the ticket verdict for a request. It performs no I/O and
// never fails: a jurisdiction or service missing from the catalog produces an
// empty requirement set and empty ticket type rather than an error.
func Evaluate(c *Catalog, jurisdiction, service string, provided []string) domain.TicketVerdict {
	have := make(map[string]bool, len(provided))
	for _, doc := range provided {
		have[doc] = true
	}

	missing := []string{}
	for _, doc := range c.RequiredDocuments(jurisdiction, service) {
		if !have[doc] {
			missing = append(missing, doc)
		}
	}

	ticketType, category := c.ResolveTicketType(service)
	status := domain.TicketComplete
	if len(missing) > 0 {
		status = domain.TicketIncomplete
	}
	return domain.TicketVerdict{
		Category:         category,
		TicketType:       ticketType,
		Status:           status,
		MissingDocuments: missing,
	}
}
