package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrygate/internal/platform/config"
	"entrygate/pkg/testutil"
)

const scenarioAdminToken = "ops-secret"

func submission(email, phone string) map[string]any {
	return map[string]any{
		"contestId": "summer-2030",
		"drawAtIso": "2030-06-12T19:00:00Z",
		"email":     email,
		"phone":     phone,
		"firstName": "Sam",
		"locale":    "fr",
		"consent":   true,
	}
}

func TestGatewayScenario(t *testing.T) {
	testutil.Given(t, "a gateway on in-memory backends", func(t *testing.T) {
		t.Setenv("DEDUPE_SALT", "pepper")
		t.Setenv("ADMIN_TOKEN", scenarioAdminToken)
		t.Setenv("DISPATCH_TOKEN", "dispatch-secret")
		t.Setenv("RATE_LIMIT_BURST", "20")

		cfg, err := config.FromEnv()
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		gateway, err := build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)
		t.Cleanup(func() { gateway.close(context.Background()) })
		router := gateway.router

		var entryID string

		testutil.When(t, "a person enters", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/entry", submission("Sam@Example.com", "+1 (555) 123-4567")))

			testutil.Then(t, "the entry is admitted", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				resp := testutil.UnmarshalResponse[struct {
					OK      bool   `json:"ok"`
					EntryID string `json:"entryId"`
				}](t, rr)
				assert.True(t, resp.OK)
				require.NotEmpty(t, resp.EntryID)
				entryID = resp.EntryID
			})
		})

		testutil.When(t, "the same email enters again with another phone", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/entry", submission("  sam@example.COM ", "5550000000")))

			testutil.Then(t, "it is rejected as a duplicate", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, "duplicate_entry")
			})
		})

		testutil.When(t, "an operator looks the entry up", func(t *testing.T) {
			req := testutil.WithAdminToken(testutil.NewRequest(t, http.MethodGet, "/admin/contests/summer-2030/entries/"+entryID), scenarioAdminToken)
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the normalized entry and its schedules are shown", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				resp := testutil.UnmarshalResponse[struct {
					Email     string `json:"email"`
					Phone     string `json:"phone"`
					Schedules []struct {
						Kind string `json:"kind"`
						Name string `json:"name"`
					} `json:"schedules"`
				}](t, rr)
				assert.Equal(t, "sam@example.com", resp.Email)
				assert.Equal(t, "+15551234567", resp.Phone)
				require.Len(t, resp.Schedules, 2)
				assert.True(t, strings.HasPrefix(resp.Schedules[0].Name, "reminder-"))
				assert.True(t, strings.HasPrefix(resp.Schedules[1].Name, "draw-"))
			})
		})

		testutil.When(t, "the operator reads the audit log", func(t *testing.T) {
			testutil.Then(t, "admission and the rejected duplicate are recorded", func(t *testing.T) {
				assert.Eventually(t, func() bool {
					req := testutil.WithAdminToken(testutil.NewRequest(t, http.MethodGet, "/admin/contests/summer-2030/audit"), scenarioAdminToken)
					body := testutil.DoRequest(router, req).Body.String()
					return strings.Contains(body, "entry_admitted") && strings.Contains(body, "entry_duplicate_rejected")
				}, 2*time.Second, 20*time.Millisecond)
			})
		})

		testutil.When(t, "metrics are scraped", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "submission outcomes are exported", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.Contains(t, rr.Body.String(), `entrygate_submissions_total{outcome="admitted"} 1`)
				assert.Contains(t, rr.Body.String(), `entrygate_submissions_total{outcome="duplicate"} 1`)
			})
		})

		testutil.When(t, "health is checked", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

			testutil.Then(t, "the gateway is healthy", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
			})
		})
	})
}
