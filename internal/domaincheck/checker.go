package domaincheck

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/orthopulse/growth-platform/pkg/logging"
)

// Status is the verdict vocabulary for a domain check.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusChecking    Status = "checking"
	StatusValid       Status = "valid"
	StatusWarning     Status = "warning"
	StatusUnreachable Status = "unreachable"
)

// Result is a transient verdict for one input. A newer input's result
// supersedes it entirely; results are never merged.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// ConflictLookup reports whether a sanitized domain is already claimed by
// another organization.
type ConflictLookup interface {
	DomainInUse(ctx context.Context, domain string) (bool, error)
}

// Checker turns a sanitized domain into a confidence-scored verdict by
// probing reachability and checking for conflicts.
type Checker struct {
	httpClient *http.Client
	conflicts  ConflictLookup
	logger     *logging.Logger
}

// NewChecker creates a domain checker. conflicts may be nil, in which case
// the warning status is never produced.
func NewChecker(timeout time.Duration, conflicts ConflictLookup, logger *logging.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Checker{
		httpClient: &http.Client{Timeout: timeout},
		conflicts:  conflicts,
		logger:     logger,
	}
}

// WithHTTPClient overrides the probe client (for testing).
func (c *Checker) WithHTTPClient(client *http.Client) *Checker {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// Check validates the raw input and, when syntactically acceptable, issues
// exactly one reachability probe. Invalid syntax yields idle with no I/O.
func (c *Checker) Check(ctx context.Context, raw string) Result {
	domain := Sanitize(raw)
	if !IsValidSyntax(domain) {
		return Result{Status: StatusIdle}
	}

	if !c.reachable(ctx, domain) {
		return Result{
			Status:  StatusUnreachable,
			Message: fmt.Sprintf("We couldn't reach %s. Double-check the address.", domain),
		}
	}

	if c.conflicts != nil {
		inUse, err := c.conflicts.DomainInUse(ctx, domain)
		if err != nil {
			c.logger.Error("domain conflict lookup failed", "domain", domain, "error", err)
		} else if inUse {
			return Result{
				Status:  StatusWarning,
				Message: fmt.Sprintf("%s is already registered to another practice.", domain),
			}
		}
	}

	return Result{
		Status:  StatusValid,
		Message: fmt.Sprintf("%s looks good.", domain),
	}
}

func (c *Checker) reachable(ctx context.Context, domain string) bool {
	for _, scheme := range []string{"https", "http"} {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, scheme+"://"+domain+"/", nil)
		if err != nil {
			continue
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < http.StatusInternalServerError {
			return true
		}
	}
	return false
}
