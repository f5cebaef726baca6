package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/brennanwesley/jobticketinvoice/internal/app"
	"github.com/brennanwesley/jobticketinvoice/internal/config"
	"github.com/brennanwesley/jobticketinvoice/internal/fieldcrypt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, pool *pgxpool.Pool) *httptest.Server {
	t.Helper()

	key := bytes.Repeat([]byte{0x42}, 32)
	codec, err := fieldcrypt.New(key)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                "dev",
		HTTPAddr:           ":0",
		BaseURL:            "http://localhost",
		DBDSN:              "unused",
		JWTSecret:          "test-secret",
		EncryptionKey:      key,
		LogLevel:           "error",
		LoginRateLimitRPM:  120,
		RedeemRateLimitRPM: 120,
		InviteTTLHours:     48,
		SessionDays:        7,
		NotifyTimeoutMS:    2000,
	}

	srv := httptest.NewServer(app.NewRouter(pool, cfg, codec))
	t.Cleanup(srv.Close)
	return srv
}

type envelopeResponse struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, method, urlStr, bearer string, wantStatus int, payload any) []byte {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, urlStr, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", string(respBody))

	return respBody
}

func dataOf(t *testing.T, body []byte) json.RawMessage {
	t.Helper()

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotEmpty(t, env.RequestID)
	return env.Data
}

func errorCodeOf(t *testing.T, body []byte) string {
	t.Helper()

	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	return env.Error.Code
}

func signupManager(t *testing.T, baseURL, companyName, email string) (token string, companyID uuid.UUID) {
	t.Helper()

	body := doJSON(t, http.MethodPost, baseURL+"/api/v1/auth/manager-signup", "", http.StatusCreated, map[string]any{
		"company_name": companyName,
		"email":        email,
		"password":     "password123",
		"name":         "Pat Manager",
	})

	var parsed struct {
		Company struct {
			CompanyID uuid.UUID `json:"company_id"`
		} `json:"company"`
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, body), &parsed))
	require.NotEmpty(t, parsed.AccessToken)
	return parsed.AccessToken, parsed.Company.CompanyID
}

type inviteCreated struct {
	InviteID   uuid.UUID `json:"invite_id"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	SignupLink string    `json:"signup_link"`
}

func createInvite(t *testing.T, baseURL, managerToken, techName, email string) inviteCreated {
	t.Helper()

	body := doJSON(t, http.MethodPost, baseURL+"/api/v1/tech-invites", managerToken, http.StatusCreated, map[string]any{
		"tech_name": techName,
		"email":     email,
	})

	var created inviteCreated
	require.NoError(t, json.Unmarshal(dataOf(t, body), &created))
	require.NotEmpty(t, created.Token)
	require.Contains(t, created.SignupLink, "/signup-tech?token=")
	return created
}

func TestInviteLifecycle_CreateValidateRedeem(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := newTestServer(t, pool)

	managerToken, companyID := signupManager(t, srv.URL, "Acme Oilfield Services", "manager@acme.example")
	require.NotEqual(t, uuid.Nil, companyID)

	invite := createInvite(t, srv.URL, managerToken, "Taylor Tech", "taylor@acme.example")

	// Public validation returns the pre-fill data.
	body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/tech-invites/validate?token="+invite.Token, "", http.StatusOK, nil)
	var validated struct {
		Valid       bool   `json:"valid"`
		TechName    string `json:"tech_name"`
		Email       string `json:"email"`
		CompanyName string `json:"company_name"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, body), &validated))
	require.True(t, validated.Valid)
	require.Equal(t, "Taylor Tech", validated.TechName)
	require.Equal(t, "taylor@acme.example", validated.Email)
	require.Equal(t, "Acme Oilfield Services", validated.CompanyName)

	// A second pending invite for the same email conflicts.
	conflictBody := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tech-invites", managerToken, http.StatusConflict, map[string]any{
		"tech_name": "Taylor Tech",
		"email":     "taylor@acme.example",
	})
	require.Equal(t, "conflict", errorCodeOf(t, conflictBody))

	// Redemption creates the account and issues a session.
	body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/tech-invites/redeem", "", http.StatusOK, map[string]any{
		"token":    invite.Token,
		"password": "techpassword1",
	})
	var redeemed struct {
		Success     bool   `json:"success"`
		UserID      int64  `json:"user_id"`
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, body), &redeemed))
	require.True(t, redeemed.Success)
	require.NotZero(t, redeemed.UserID)
	require.NotEmpty(t, redeemed.AccessToken)

	// The issued session belongs to an active technician.
	body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/auth/me", redeemed.AccessToken, http.StatusOK, nil)
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(dataOf(t, body), &me))
	require.Equal(t, "taylor@acme.example", me.Email)
	require.Equal(t, "tech", me.Role)

	// The token is single-use: both redeem and validate now report gone.
	goneBody := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tech-invites/redeem", "", http.StatusGone, map[string]any{
		"token":    invite.Token,
		"password": "anotherpassword",
	})
	require.Equal(t, "gone", errorCodeOf(t, goneBody))

	doJSON(t, http.MethodGet, srv.URL+"/api/v1/tech-invites/validate?token="+invite.Token, "", http.StatusGone, nil)

	// The invite row reflects acceptance.
	var status string
	err := pool.QueryRow(context.Background(), `SELECT status FROM tech_invites WHERE invite_id = $1`, invite.InviteID).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, "accepted", status)
}

func TestInviteLifecycle_ConcurrentRedemption(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := newTestServer(t, pool)

	managerToken, _ := signupManager(t, srv.URL, "Crosswind Services", "manager@crosswind.example")
	invite := createInvite(t, srv.URL, managerToken, "Riley Tech", "riley@crosswind.example")

	payload, err := json.Marshal(map[string]any{
		"token":    invite.Token,
		"password": "racepassword1",
	})
	require.NoError(t, err)

	// Fire both redemptions at once; the row lock in the redeem transaction
	// must let exactly one through.
	statuses := make(chan int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(srv.URL+"/api/v1/tech-invites/redeem", "application/json", bytes.NewReader(payload))
			if err != nil {
				statuses <- 0
				return
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	var codes []int
	for code := range statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	require.Equal(t, http.StatusOK, codes[0], "exactly one redemption should succeed")
	require.Contains(t, []int{http.StatusConflict, http.StatusGone}, codes[1], "the losing redemption should be refused")

	// Exactly one account and one accepted row came out of the race.
	var userCount int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM users WHERE email = 'riley@crosswind.example'`).Scan(&userCount))
	require.Equal(t, 1, userCount)

	var status string
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT status FROM tech_invites WHERE invite_id = $1`, invite.InviteID).Scan(&status))
	require.Equal(t, "accepted", status)
}

func TestInviteLifecycle_ReinviteAfterExpiry(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := newTestServer(t, pool)

	managerToken, _ := signupManager(t, srv.URL, "Dusty Basin Services", "manager@dustybasin.example")
	first := createInvite(t, srv.URL, managerToken, "Morgan Tech", "morgan@dustybasin.example")

	// While the first invite is live, a duplicate is refused.
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/tech-invites", managerToken, http.StatusConflict, map[string]any{
		"tech_name": "Morgan Tech",
		"email":     "morgan@dustybasin.example",
	})

	// Rewind the first invite past its expiry.
	_, err := pool.Exec(context.Background(),
		`UPDATE tech_invites SET expires_at = NOW() - INTERVAL '1 hour' WHERE invite_id = $1`, first.InviteID)
	require.NoError(t, err)

	// The stale pending row no longer blocks a replacement.
	second := createInvite(t, srv.URL, managerToken, "Morgan Tech", "morgan@dustybasin.example")
	require.NotEqual(t, first.InviteID, second.InviteID)

	// Its slot in the partial unique index was freed by flipping the status.
	var status string
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT status FROM tech_invites WHERE invite_id = $1`, first.InviteID).Scan(&status))
	require.Equal(t, "expired", status)

	// The old token is dead, the replacement redeems normally.
	doJSON(t, http.MethodGet, srv.URL+"/api/v1/tech-invites/validate?token="+first.Token, "", http.StatusGone, nil)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/tech-invites/redeem", "", http.StatusOK, map[string]any{
		"token":    second.Token,
		"password": "freshpassword1",
	})
}

func TestInviteLifecycle_CancelAndErrors(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := newTestServer(t, pool)

	managerToken, _ := signupManager(t, srv.URL, "Borealis Pumps", "manager@borealis.example")

	invite := createInvite(t, srv.URL, managerToken, "Jamie Tech", "jamie@borealis.example")

	// Cancel requires a manager session.
	doJSON(t, http.MethodDelete, srv.URL+"/api/v1/tech-invites/"+invite.InviteID.String(), "", http.StatusUnauthorized, nil)

	doJSON(t, http.MethodDelete, srv.URL+"/api/v1/tech-invites/"+invite.InviteID.String(), managerToken, http.StatusOK, nil)

	// A cancelled invite refuses validation and redemption with 410.
	doJSON(t, http.MethodGet, srv.URL+"/api/v1/tech-invites/validate?token="+invite.Token, "", http.StatusGone, nil)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/tech-invites/redeem", "", http.StatusGone, map[string]any{
		"token":    invite.Token,
		"password": "strongenough",
	})

	// Cancelling twice is a 400, cancelling a random id a 404.
	doJSON(t, http.MethodDelete, srv.URL+"/api/v1/tech-invites/"+invite.InviteID.String(), managerToken, http.StatusBadRequest, nil)
	doJSON(t, http.MethodDelete, srv.URL+"/api/v1/tech-invites/"+uuid.NewString(), managerToken, http.StatusNotFound, nil)

	// Garbage tokens are 401, never 500.
	doJSON(t, http.MethodGet, srv.URL+"/api/v1/tech-invites/validate?token=not-a-jwt", "", http.StatusUnauthorized, nil)

	// A tampered token is rejected before any record lookup.
	tampered := invite.Token[:len(invite.Token)-2] + "xx"
	doJSON(t, http.MethodGet, srv.URL+"/api/v1/tech-invites/validate?token="+tampered, "", http.StatusUnauthorized, nil)

	// An invite for an email that already has an account conflicts.
	conflictBody := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tech-invites", managerToken, http.StatusConflict, map[string]any{
		"tech_name": "Self Invite",
		"email":     "manager@borealis.example",
	})
	require.Equal(t, "conflict", errorCodeOf(t, conflictBody))
}

func TestInviteLifecycle_ListAndScoping(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	srv := newTestServer(t, pool)

	tokenA, _ := signupManager(t, srv.URL, "Company A", "a@a.example")
	tokenB, _ := signupManager(t, srv.URL, "Company B", "b@b.example")

	createInvite(t, srv.URL, tokenA, "Tech One", "one@a.example")
	createInvite(t, srv.URL, tokenA, "Tech Two", "two@a.example")
	createInvite(t, srv.URL, tokenB, "Tech Three", "three@b.example")

	type inviteList struct {
		Invites []struct {
			Email  string `json:"email"`
			Status string `json:"status"`
		} `json:"invites"`
	}

	body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/tech-invites", tokenA, http.StatusOK, nil)
	var listA inviteList
	require.NoError(t, json.Unmarshal(dataOf(t, body), &listA))
	require.Len(t, listA.Invites, 2)
	for _, inv := range listA.Invites {
		require.Equal(t, "pending", inv.Status)
		require.NotEqual(t, "three@b.example", inv.Email)
	}

	body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tech-invites?status=pending", tokenB, http.StatusOK, nil)
	var listB inviteList
	require.NoError(t, json.Unmarshal(dataOf(t, body), &listB))
	require.Len(t, listB.Invites, 1)
	require.Equal(t, "three@b.example", listB.Invites[0].Email)
}
