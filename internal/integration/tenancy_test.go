package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagerSignupCompanyNameConflict(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := newTestServer(t, pool)

	signupManager(t, srv.URL, "Acme Oilfield Services", "first@acme.example")

	// Normalization collapses case, spaces, hyphens, and underscores.
	body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/manager-signup", "", http.StatusConflict, map[string]any{
		"company_name": "ACME Oilfield-Services",
		"email":        "second@acme.example",
		"password":     "password123",
		"name":         "Second Manager",
	})
	require.Equal(t, "conflict", errorCodeOf(t, body))

	// Reusing the manager email conflicts even with a fresh company name.
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/manager-signup", "", http.StatusConflict, map[string]any{
		"company_name": "Completely Different Co",
		"email":        "first@acme.example",
		"password":     "password123",
		"name":         "Second Manager",
	})
}

func TestJobTicketEncryptedAtRest(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := newTestServer(t, pool)
	managerToken, _ := signupManager(t, srv.URL, "Pumpjack Partners", "mgr@pumpjack.example")

	location := "Lease 42, County Road 118"
	description := "Replaced stuffing box, greased bearings"

	body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/job-tickets", managerToken, http.StatusCreated, map[string]any{
		"customer_name":    "Permian Basin Oil Co",
		"location":         location,
		"work_description": description,
		"work_type":        "pump repair",
	})

	var ticket struct {
		ID              int64  `json:"id"`
		TicketNumber    string `json:"ticket_number"`
		Location        string `json:"location"`
		WorkDescription string `json:"work_description"`
		Status          string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, body), &ticket))
	require.Len(t, ticket.TicketNumber, 8)
	require.Equal(t, location, ticket.Location)
	require.Equal(t, description, ticket.WorkDescription)
	require.Equal(t, "draft", ticket.Status)

	// Stored columns hold ciphertext, never the plaintext values.
	var storedLocation, storedDescription string
	err := pool.QueryRow(context.Background(),
		`SELECT location, work_description FROM job_tickets WHERE id = $1`, ticket.ID,
	).Scan(&storedLocation, &storedDescription)
	require.NoError(t, err)
	require.NotEqual(t, location, storedLocation)
	require.NotEqual(t, description, storedDescription)
	require.NotContains(t, storedLocation, "Lease")
	require.NotContains(t, storedDescription, "stuffing")

	// Reading back decrypts.
	body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/job-tickets", managerToken, http.StatusOK, nil)
	var list struct {
		Tickets []struct {
			Location string `json:"location"`
		} `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, body), &list))
	require.Len(t, list.Tickets, 1)
	require.Equal(t, location, list.Tickets[0].Location)
}

func TestInvoiceEncryptedAtRest(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := newTestServer(t, pool)
	managerToken, _ := signupManager(t, srv.URL, "Wellhead Works", "mgr@wellhead.example")

	body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/job-tickets", managerToken, http.StatusCreated, map[string]any{
		"customer_name": "Delta Drilling",
	})
	var ticket struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, body), &ticket))

	body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/invoices", managerToken, http.StatusCreated, map[string]any{
		"job_ticket_id": ticket.ID,
		"amount":        "1850.75",
		"line_items": []map[string]any{
			{"description": "Service call", "quantity": 1, "unit_price": "1850.75", "total": "1850.75"},
		},
	})
	var invoice struct {
		ID     int64  `json:"id"`
		Amount string `json:"amount"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, body), &invoice))
	require.Equal(t, "1850.75", invoice.Amount)
	require.Equal(t, "draft", invoice.Status)

	var storedAmount string
	err := pool.QueryRow(context.Background(),
		`SELECT amount FROM invoices WHERE id = $1`, invoice.ID,
	).Scan(&storedAmount)
	require.NoError(t, err)
	require.NotEqual(t, "1850.75", storedAmount)

	// Linking to a ticket outside the company is a 404.
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/invoices", managerToken, http.StatusNotFound, map[string]any{
		"job_ticket_id": ticket.ID + 999,
		"amount":        "10.00",
	})

	// Invalid amounts are rejected before anything is stored.
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/invoices", managerToken, http.StatusBadRequest, map[string]any{
		"job_ticket_id": ticket.ID,
		"amount":        "lots",
	})
}

func TestUserManagementAndAudit(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := newTestServer(t, pool)
	managerToken, _ := signupManager(t, srv.URL, "Rig Route LLC", "mgr@rigroute.example")

	body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users/tech", managerToken, http.StatusCreated, map[string]any{
		"email":    "newtech@rigroute.example",
		"name":     "New Tech",
		"password": "temporary1",
	})
	var created struct {
		ID                 int64  `json:"id"`
		Role               string `json:"role"`
		ForcePasswordReset bool   `json:"force_password_reset"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, body), &created))
	require.Equal(t, "tech", created.Role)
	require.True(t, created.ForcePasswordReset)

	// The tech cannot manage users.
	loginBody := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", http.StatusOK, map[string]any{
		"email":    "newtech@rigroute.example",
		"password": "temporary1",
	})
	var login struct {
		AccessToken        string `json:"access_token"`
		ForcePasswordReset bool   `json:"force_password_reset"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, loginBody), &login))
	require.True(t, login.ForcePasswordReset)

	doJSON(t, http.MethodGet, srv.URL+"/api/v1/users", login.AccessToken, http.StatusForbidden, nil)

	// Deactivation locks the account out.
	doJSON(t, http.MethodDelete, srv.URL+"/api/v1/users/"+strconv.FormatInt(created.ID, 10), managerToken, http.StatusOK, nil)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", http.StatusUnauthorized, map[string]any{
		"email":    "newtech@rigroute.example",
		"password": "temporary1",
	})

	// The audit trail recorded the lifecycle.
	body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/audit/logs", managerToken, http.StatusOK, nil)
	var logs struct {
		Logs []struct {
			Action string `json:"action"`
		} `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, body), &logs))

	actions := make(map[string]bool)
	for _, entry := range logs.Logs {
		actions[entry.Action] = true
	}
	require.True(t, actions["company.manager_signup"])
	require.True(t, actions["user.created"])
	require.True(t, actions["user.deactivated"])
}
