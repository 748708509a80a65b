package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/providentiaww/dashboard-tracker/internal/models"
)

const (
	// DefaultPriority is reported when Jira omits the priority field
	DefaultPriority = "Medium"
	// DefaultIssueType is used on create when the caller names none
	DefaultIssueType = "Task"
)

var validate = validator.New()

// namedValue decodes fields that Jira returns either as a bare string or as
// an object with a name, so callers never branch on the shape.
type namedValue struct {
	Name     string
	Category string
}

func (n *namedValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &n.Name)
	}

	var obj struct {
		Name           string          `json:"name"`
		StatusCategory json.RawMessage `json:"statusCategory"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	n.Name = obj.Name
	n.Category = categoryName(obj.StatusCategory)
	return nil
}

// categoryName reads a status category given as an object or a bare string.
// Any other shape yields no category rather than failing the whole entity.
func categoryName(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var name string
		if json.Unmarshal(raw, &name) == nil {
			return name
		}
	case '{':
		var obj struct {
			Name json.RawMessage `json:"name"`
		}
		if json.Unmarshal(raw, &obj) == nil {
			var name string
			if json.Unmarshal(obj.Name, &name) == nil {
				return name
			}
		}
	}
	return ""
}

type remoteUser struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

type remoteProjectRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type remoteIssueFields struct {
	Summary     string            `json:"summary"`
	Description json.RawMessage   `json:"description"`
	Status      *namedValue       `json:"status"`
	Priority    *namedValue       `json:"priority"`
	Assignee    *remoteUser       `json:"assignee"`
	Reporter    *remoteUser       `json:"reporter"`
	Created     string            `json:"created"`
	Updated     string            `json:"updated"`
	DueDate     string            `json:"duedate"`
	Project     *remoteProjectRef `json:"project"`
	IssueType   *namedValue       `json:"issuetype"`
}

type remoteIssue struct {
	ID     string            `json:"id"`
	Key    string            `json:"key"`
	Fields remoteIssueFields `json:"fields"`
}

type remoteIssueType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Subtask     bool   `json:"subtask"`
}

type remoteProject struct {
	ID             string            `json:"id"`
	Key            string            `json:"key"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Lead           *remoteUser       `json:"lead"`
	ProjectTypeKey string            `json:"projectTypeKey"`
	IssueTypes     []remoteIssueType `json:"issueTypes"`
}

type remotePriority struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type remoteTransition struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	To   namedValue `json:"to"`
}

type searchResponse struct {
	Issues        []remoteIssue `json:"issues"`
	NextPageToken string        `json:"nextPageToken"`
	IsLast        bool          `json:"isLast"`
}

type projectSearchResponse struct {
	Values []remoteProject `json:"values"`
	IsLast bool            `json:"isLast"`
}

type transitionsResponse struct {
	Transitions []remoteTransition `json:"transitions"`
}

type createIssueResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// issueFields is the field list requested from search so that every
// translated issue is fully populated.
var issueFields = []string{
	"summary", "description", "status", "priority", "assignee", "reporter",
	"created", "updated", "duedate", "project", "issuetype",
}

var jiraTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339Nano,
	"2006-01-02",
}

func parseJiraTime(s string) time.Time {
	for _, layout := range jiraTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func toPerson(u *remoteUser) models.Person {
	if u == nil {
		return models.Person{}
	}
	return models.Person{DisplayName: u.DisplayName, Email: u.EmailAddress}
}

func toIssue(r remoteIssue) models.Issue {
	f := r.Fields
	issue := models.Issue{
		ID:          r.ID,
		Key:         r.Key,
		Summary:     f.Summary,
		Description: ExtractText(f.Description),
		Priority:    DefaultPriority,
		Reporter:    toPerson(f.Reporter),
		Created:     parseJiraTime(f.Created),
		Updated:     parseJiraTime(f.Updated),
		DueDate:     f.DueDate,
	}
	if f.Status != nil {
		issue.Status = models.IssueStatus{Name: f.Status.Name, Category: f.Status.Category}
	}
	if f.Priority != nil && f.Priority.Name != "" {
		issue.Priority = f.Priority.Name
	}
	if f.Assignee != nil {
		assignee := toPerson(f.Assignee)
		issue.Assignee = &assignee
	}
	if f.Project != nil {
		issue.Project = models.ProjectRef{Key: f.Project.Key, Name: f.Project.Name}
	}
	if f.IssueType != nil {
		issue.IssueType = f.IssueType.Name
	}
	return issue
}

func toProject(r remoteProject) models.Project {
	p := models.Project{
		ID:          r.ID,
		Key:         r.Key,
		Name:        r.Name,
		Description: r.Description,
		ProjectType: r.ProjectTypeKey,
	}
	if r.Lead != nil {
		p.Lead = r.Lead.DisplayName
	}
	return p
}

func toUser(r remoteUser) models.User {
	return models.User{
		AccountID:   r.AccountID,
		DisplayName: r.DisplayName,
		Email:       r.EmailAddress,
		Active:      r.Active,
	}
}

func toPriority(r remotePriority) models.Priority {
	return models.Priority{ID: r.ID, Name: r.Name, Description: r.Description}
}

func toIssueType(r remoteIssueType) models.IssueType {
	return models.IssueType{ID: r.ID, Name: r.Name, Description: r.Description, Subtask: r.Subtask}
}

func toTransition(r remoteTransition) models.Transition {
	return models.Transition{
		ID:   r.ID,
		Name: r.Name,
		To:   models.IssueStatus{Name: r.To.Name, Category: r.To.Category},
	}
}

// isEmail reports whether s is a bare, syntactically valid email address
func isEmail(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && validate.Var(s, "email") == nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// lookupFold finds key in m ignoring case
func lookupFold(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
