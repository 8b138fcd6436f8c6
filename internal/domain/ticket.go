package domain

type TicketStatus string

const (
	TicketComplete   TicketStatus = "complete"
	TicketIncomplete TicketStatus = "incomplete"
)

type TicketVerdict struct {
	Category         string       `json:"category"`
	TicketType       string       `json:"ticketType"`
	Status           TicketStatus `json:"status"`
	MissingDocuments []string     `json:"missingDocs"`
}
