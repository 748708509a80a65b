package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/providentiaww/dashboard-tracker/internal/logger"
	"github.com/providentiaww/dashboard-tracker/internal/models"
)

// ErrInvalidInput is wrapped by errors for requests rejected before any
// call is made.
var ErrInvalidInput = errors.New("invalid input")

// DefaultIssueTypeCodes maps issue-type names that must be sent to Jira by
// numeric id instead of by name.
var DefaultIssueTypeCodes = map[string]string{
	"Idea": "10014",
}

const defaultMaxResults = 50

// WorkspaceCredentials holds connection info for one Atlassian instance
type WorkspaceCredentials struct {
	Site  string // e.g., "https://eso.atlassian.net"
	Email string // e.g., "service@eso.com"
	Token string // Atlassian API token
}

// Client talks to the Jira REST API on behalf of the dashboard. It keeps no
// state between calls beyond its construction-time configuration.
type Client struct {
	creds          WorkspaceCredentials
	httpClient     *http.Client
	statusMap      StatusMap
	issueTypeCodes map[string]string
	log            *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithStatusMap replaces the logical-to-remote status name table
func WithStatusMap(m StatusMap) Option {
	return func(c *Client) {
		if len(m) > 0 {
			c.statusMap = copyMap(m)
		}
	}
}

// WithIssueTypeCodes replaces the issue-type name-to-id table
func WithIssueTypeCodes(m map[string]string) Option {
	return func(c *Client) {
		if len(m) > 0 {
			c.issueTypeCodes = copyMap(m)
		}
	}
}

// WithHTTPClient overrides the HTTP client, mostly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Shared HTTP client with connection pooling
var sharedHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// NewClient creates an authenticated Jira client. Credentials are not
// checked here; missing values surface as a 401 on the first call.
func NewClient(creds WorkspaceCredentials, timeout time.Duration, opts ...Option) *Client {
	client := sharedHTTPClient
	if timeout > 0 && timeout != sharedHTTPClient.Timeout {
		client = &http.Client{
			Timeout:   timeout,
			Transport: sharedHTTPClient.Transport,
		}
	}

	creds.Site = strings.TrimRight(creds.Site, "/")
	c := &Client{
		creds:          creds,
		httpClient:     client,
		statusMap:      copyMap(DefaultStatusMap),
		issueTypeCodes: copyMap(DefaultIssueTypeCodes),
		log:            logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("site", c.creds.Site))
	return c
}

// IssueFilter narrows ListIssues. JQL, when set, is passed through verbatim
// and the other fields are ignored.
type IssueFilter struct {
	ProjectKey string
	Text       string
	JQL        string
	MaxResults int
}

// Query renders the filter as JQL. The empty filter lists every issue,
// most recently created first.
func (f IssueFilter) Query() string {
	if jql := strings.TrimSpace(f.JQL); jql != "" {
		return jql
	}

	var clauses []string
	if key := strings.TrimSpace(f.ProjectKey); key != "" {
		clauses = append(clauses, fmt.Sprintf("project = %q", key))
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		clauses = append(clauses, fmt.Sprintf("text ~ %q", text))
	}

	query := strings.Join(clauses, " AND ")
	if query != "" {
		query += " "
	}
	return query + "ORDER BY created DESC"
}

// ListProjects returns the visible projects, optionally filtered by a
// name/key search string.
func (c *Client) ListProjects(ctx context.Context, query string) ([]models.Project, error) {
	params := url.Values{}
	params.Set("expand", "description,lead")
	if q := strings.TrimSpace(query); q != "" {
		params.Set("query", q)
	}

	var resp projectSearchResponse
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/3/project/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]models.Project, 0, len(resp.Values))
	for _, p := range resp.Values {
		projects = append(projects, toProject(p))
	}
	return projects, nil
}

// ListIssues searches issues with the JQL rendered from filter
func (c *Client) ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, error) {
	limit := filter.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}

	payload := map[string]interface{}{
		"jql":        filter.Query(),
		"maxResults": limit,
		"fields":     issueFields,
	}

	var resp searchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/3/search/jql", payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	issues := make([]models.Issue, 0, len(resp.Issues))
	for _, r := range resp.Issues {
		issues = append(issues, toIssue(r))
	}
	return issues, nil
}

// GetIssue gets a specific issue by key or ID
func (c *Client) GetIssue(ctx context.Context, issueKey string) (*models.Issue, error) {
	path := issuePath(issueKey) + "?fields=" + strings.Join(issueFields, ",")

	var r remoteIssue
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &r); err != nil {
		return nil, fmt.Errorf("failed to get issue %s: %w", issueKey, err)
	}

	issue := toIssue(r)
	return &issue, nil
}

// CreateIssueInput holds the fields accepted when creating an issue
type CreateIssueInput struct {
	ProjectKey  string `json:"projectKey"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	// IssueType is a type name or a numeric Jira issue-type id
	IssueType string `json:"issueType,omitempty"`
	Priority  string `json:"priority,omitempty"`
	// Assignee is an email address; anything else is dropped
	Assignee string `json:"assignee,omitempty"`
	// DueDate is YYYY-MM-DD
	DueDate string `json:"dueDate,omitempty"`
}

// CreateIssue creates an issue and reads it back, since Jira's create
// response only carries the id and key.
func (c *Client) CreateIssue(ctx context.Context, in CreateIssueInput) (*models.Issue, error) {
	if strings.TrimSpace(in.ProjectKey) == "" {
		return nil, fmt.Errorf("%w: project key is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Summary) == "" {
		return nil, fmt.Errorf("%w: summary is required", ErrInvalidInput)
	}

	payload := map[string]interface{}{
		"fields": c.createFields(in),
	}

	var created createIssueResponse
	if err := c.doJSON(ctx, http.MethodPost, "/rest/api/3/issue", payload, &created); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	c.log.Info("issue created", zap.String("issue_key", created.Key), zap.String("project_key", in.ProjectKey))

	key := created.Key
	if key == "" {
		key = created.ID
	}
	return c.GetIssue(ctx, key)
}

func (c *Client) createFields(in CreateIssueInput) map[string]interface{} {
	fields := map[string]interface{}{
		"project": map[string]string{
			"key": strings.TrimSpace(in.ProjectKey),
		},
		"issuetype": c.issueTypeField(in.IssueType),
		"summary":   strings.TrimSpace(in.Summary),
	}

	if in.Description != "" {
		fields["description"] = PlainTextDocument(in.Description)
	}
	if p := strings.TrimSpace(in.Priority); p != "" {
		fields["priority"] = map[string]string{"name": p}
	}
	if isEmail(in.Assignee) {
		fields["assignee"] = map[string]string{"emailAddress": strings.TrimSpace(in.Assignee)}
	}
	if d := strings.TrimSpace(in.DueDate); d != "" {
		fields["duedate"] = d
	}
	return fields
}

func (c *Client) issueTypeField(value string) map[string]string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = DefaultIssueType
	}
	if code, ok := lookupFold(c.issueTypeCodes, value); ok {
		return map[string]string{"id": code}
	}
	if isNumeric(value) {
		return map[string]string{"id": value}
	}
	return map[string]string{"name": value}
}

// ListUsers searches users by name or email; an empty query lists all users
func (c *Client) ListUsers(ctx context.Context, query string) ([]models.User, error) {
	path := "/rest/api/3/users/search?maxResults=" + strconv.Itoa(defaultMaxResults*2)
	if q := strings.TrimSpace(query); q != "" {
		path = "/rest/api/3/user/search?query=" + url.QueryEscape(q)
	}

	var remote []remoteUser
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &remote); err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	users := make([]models.User, 0, len(remote))
	for _, u := range remote {
		users = append(users, toUser(u))
	}
	return users, nil
}

// ListPriorities returns every priority defined on the site
func (c *Client) ListPriorities(ctx context.Context) ([]models.Priority, error) {
	var remote []remotePriority
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/3/priority", nil, &remote); err != nil {
		return nil, fmt.Errorf("failed to list priorities: %w", err)
	}

	priorities := make([]models.Priority, 0, len(remote))
	for _, p := range remote {
		priorities = append(priorities, toPriority(p))
	}
	return priorities, nil
}

// ListIssueTypes returns the site's issue types, or only those available in
// projectKey when it is set.
func (c *Client) ListIssueTypes(ctx context.Context, projectKey string) ([]models.IssueType, error) {
	var remote []remoteIssueType
	if key := strings.TrimSpace(projectKey); key != "" {
		var project remoteProject
		if err := c.doJSON(ctx, http.MethodGet, "/rest/api/3/project/"+url.PathEscape(key), nil, &project); err != nil {
			return nil, fmt.Errorf("failed to list issue types for %s: %w", key, err)
		}
		remote = project.IssueTypes
	} else if err := c.doJSON(ctx, http.MethodGet, "/rest/api/3/issuetype", nil, &remote); err != nil {
		return nil, fmt.Errorf("failed to list issue types: %w", err)
	}

	types := make([]models.IssueType, 0, len(remote))
	for _, t := range remote {
		types = append(types, toIssueType(t))
	}
	return types, nil
}

// Myself returns the user the credentials belong to
func (c *Client) Myself(ctx context.Context) (*models.User, error) {
	var me remoteUser
	if err := c.doJSON(ctx, http.MethodGet, "/rest/api/3/myself", nil, &me); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	user := toUser(me)
	return &user, nil
}

// TestConnection reports whether the configured credentials can reach Jira
func (c *Client) TestConnection(ctx context.Context) bool {
	if _, err := c.Myself(ctx); err != nil {
		c.log.Warn("jira connectivity test failed", zap.Error(err))
		return false
	}
	return true
}

func issuePath(issueKey string) string {
	return "/rest/api/3/issue/" + url.PathEscape(issueKey)
}

func copyMap[M ~map[string]string](m M) M {
	out := make(M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
