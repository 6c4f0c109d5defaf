package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromText_MarkdownHeadingAndLabels(t *testing.T) {
	content := `# Senior Backend Engineer

Company: Acme Corp
Location: Austin, TX

We are looking for a senior engineer.`

	fields := FromText(content, "https://example.com/jobs/1")
	assert.Equal(t, "Senior Backend Engineer", fields.Title)
	assert.Equal(t, "Acme Corp", fields.Company)
	assert.Equal(t, "Austin, TX", fields.Location)
}

func TestFromText_AboutHeadingCompany(t *testing.T) {
	content := `Position: Data Engineer

## About Globex

Globex builds data platforms.`

	fields := FromText(content, "")
	assert.Equal(t, "Data Engineer", fields.Title)
	assert.Equal(t, "Globex", fields.Company)
}

func TestFromText_RemoteFallback(t *testing.T) {
	content := "Role: Platform Engineer\nThis position is fully remote."
	fields := FromText(content, "")
	assert.Equal(t, "Remote", fields.Location)
}

func TestFromText_LinkedInURLFallbacks(t *testing.T) {
	fields := FromText("no structure here", "https://www.linkedin.com/company/acme-corp/jobs/view/senior-backend-engineer")
	assert.Equal(t, "Senior Backend Engineer", fields.Title)
	assert.Equal(t, "Acme Corp", fields.Company)
}

func TestFromText_UnknownHostNoURLFallback(t *testing.T) {
	fields := FromText("no structure here", "https://jobs.example.com/company/acme/jobs/view/engineer")
	assert.Empty(t, fields.Title)
	assert.Empty(t, fields.Company)
}

func TestFromText_StripsMarkdownArtifacts(t *testing.T) {
	fields := FromText("Job Title: **Senior Engineer** [urgent]", "")
	assert.Equal(t, "Senior Engineer urgent", fields.Title)
}

func TestFromText_OverlongCandidateRejected(t *testing.T) {
	content := "# " + strings.Repeat("x", 200) + "\nPosition: Engineer"
	fields := FromText(content, "")
	assert.Equal(t, "Engineer", fields.Title)
}

func TestFromText_EmptyInput(t *testing.T) {
	fields := FromText("", "")
	assert.Empty(t, fields.Title)
	assert.Empty(t, fields.Company)
	assert.Empty(t, fields.Location)
}

func TestSlugToTitle(t *testing.T) {
	assert.Equal(t, "Senior Backend Engineer", slugToTitle("senior-backend-engineer"))
	assert.Equal(t, "Acme", slugToTitle("acme"))
}
