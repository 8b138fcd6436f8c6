package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
required_documents:
  CA:
    Apply for a new standard driver license:
      - Proof of Identity
      - Proof of Address
      - Proof of Identity
ticket_types:
  ZETA:
    category: Driver License
    services:
      - Apply for a new standard driver license
      - Renew driver license
  ALPHA:
    category: Identification
    services:
      - Renew driver license
      - Apply for a state ID card
`

func mustParse(t *testing.T, data string) *Catalog {
	t.Helper()
	c, err := Parse([]byte(data))
	require.NoError(t, err)
	return c
}

func TestRequiredDocumentsDedupesAndKeepsOrder(t *testing.T) {
	c := mustParse(t, testCatalog)

	got := c.RequiredDocuments("CA", "Apply for a new standard driver license")
	assert.Equal(t, []string{"Proof of Identity", "Proof of Address"}, got)
}

func TestRequiredDocumentsUnknownIsEmpty(t *testing.T) {
	c := mustParse(t, testCatalog)

	assert.Empty(t, c.RequiredDocuments("ZZ", "Apply for a new standard driver license"))
	assert.Empty(t, c.RequiredDocuments("CA", "Launch a rocket"))
}

func TestResolveTicketTypeFirstMatchInFileOrder(t *testing.T) {
	c := mustParse(t, testCatalog)

	// ZETA sorts after ALPHA but is enumerated first in the file.
	ticketType, category := c.ResolveTicketType("Renew driver license")
	assert.Equal(t, "ZETA", ticketType)
	assert.Equal(t, "Driver License", category)
	assert.Equal(t, []string{"Renew driver license"}, c.Duplicates())

	ticketType, category = c.ResolveTicketType("Apply for a state ID card")
	assert.Equal(t, "ALPHA", ticketType)
	assert.Equal(t, "Identification", category)
}

func TestResolveTicketTypeUnmatched(t *testing.T) {
	c := mustParse(t, testCatalog)

	ticketType, category := c.ResolveTicketType("Launch a rocket")
	assert.Empty(t, ticketType)
	assert.Empty(t, category)
}

func TestAllKnownServicesEnumerationOrderNoDuplicates(t *testing.T) {
	c := mustParse(t, testCatalog)

	assert.Equal(t, []string{
		"Apply for a new standard driver license",
		"Renew driver license",
		"Apply for a state ID card",
	}, c.AllKnownServices())
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	c := mustParse(t, testCatalog)

	docs := c.RequiredDocuments("CA", "Apply for a new standard driver license")
	docs[0] = "mutated"
	services := c.AllKnownServices()
	services[0] = "mutated"

	assert.Equal(t, "Proof of Identity", c.RequiredDocuments("CA", "Apply for a new standard driver license")[0])
	assert.Equal(t, "Apply for a new standard driver license", c.AllKnownServices()[0])
}

func TestMatchServiceCaseInsensitive(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	service, ok := c.MatchService("Hey I want to get my real Id in NC")
	require.True(t, ok)
	assert.Equal(t, "REAL ID", service)

	_, ok = c.MatchService("what are your opening hours?")
	assert.False(t, ok)
	_, ok = c.MatchService("   ")
	assert.False(t, ok)
}

func TestParseRejectsNonMappingTicketTypes(t *testing.T) {
	_, err := Parse([]byte("ticket_types:\n  - DL_NEW\n"))
	require.Error(t, err)
}

func TestLoadAcceptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	data := `{
		"required_documents": {"NY": {"Renew driver license": ["Current Driver License"]}},
		"ticket_types": {"DL_RENEWAL": {"category": "Driver License", "services": ["Renew driver license"]}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Current Driver License"}, c.RequiredDocuments("NY", "Renew driver license"))
	ticketType, _ := c.ResolveTicketType("Renew driver license")
	assert.Equal(t, "DL_RENEWAL", ticketType)
}

func TestDefaultCatalogLoadsOnce(t *testing.T) {
	first, err := Default()
	require.NoError(t, err)
	second, err := Default()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.NotEmpty(t, first.TicketTypes())
}

func TestJurisdictionsSorted(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []string{"CA", "NC", "NY", "TX"}, c.Jurisdictions())
}
