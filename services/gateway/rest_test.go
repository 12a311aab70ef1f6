package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/core/payment"
)

type backend struct {
	mu        sync.Mutex
	paid      map[string]bool
	expired   []string
	idemKeys  []string
	authToken string
	lastBody  map[string]interface{}
}

func newBackend(t *testing.T) (*backend, *RESTGateway) {
	be := &backend{paid: map[string]bool{"PAID-0001": true, "OPEN-0001": false}}

	e := echo.New()
	e.HideBanner = true
	e.POST("/api/payments", func(c echo.Context) error {
		be.mu.Lock()
		defer be.mu.Unlock()
		be.idemKeys = append(be.idemKeys, c.Request().Header.Get(idempotencyHeader))
		be.authToken = c.Request().Header.Get(echo.HeaderAuthorization)

		body := make(map[string]interface{})
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		be.lastBody = body
		switch body["courseId"] {
		case "sold-out":
			return c.JSON(http.StatusConflict, echo.Map{"message": "This course is no longer available."})
		case "broken":
			return c.String(http.StatusBadGateway, "upstream bank unavailable")
		case "empty":
			return c.JSON(http.StatusCreated, echo.Map{"bank": "EQUITY"})
		}
		return c.JSON(http.StatusCreated, echo.Map{
			"transactionCode": "TX-1234",
			"bank":            "EQUITY",
			"account":         "00112233",
		})
	})
	e.GET("/api/payments/:code/status", func(c echo.Context) error {
		if c.Param("code") == "SLOW-0001" {
			time.Sleep(300 * time.Millisecond)
		}
		be.mu.Lock()
		defer be.mu.Unlock()
		paid, ok := be.paid[c.Param("code")]
		if !ok {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown transaction"})
		}
		return c.JSON(http.StatusOK, echo.Map{"isPaid": paid})
	})
	e.POST("/api/payments/:code/expire", func(c echo.Context) error {
		be.mu.Lock()
		defer be.mu.Unlock()
		if _, ok := be.paid[c.Param("code")]; !ok {
			return c.NoContent(http.StatusNotFound)
		}
		be.expired = append(be.expired, c.Param("code"))
		return c.NoContent(http.StatusNoContent)
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	conf := &core.Config{AppName: "masomopay", Build: "test"}
	conf.Payments.BaseURL = srv.URL + "/api/"
	conf.Payments.APIToken = "s3cr3t"
	conf.Payments.RequestTimeout = 2 * time.Second
	return be, NewRESTGateway(conf)
}

func TestRESTGateway_CreatePayment(t *testing.T) {
	be, gw := newBackend(t)
	ctx := context.Background()

	t.Run("created", func(t *testing.T) {
		pmt, err := gw.CreatePayment(ctx, payment.NewPayment{CourseID: "go-101", Amount: 5000, DiscountCode: "WELCOME"})
		require.NoError(t, err)
		assert.Equal(t, payment.TransactionCode("TX-1234"), pmt.TransactionCode)
		assert.Equal(t, "go-101", pmt.CourseID)
		assert.Equal(t, int64(5000), pmt.Amount)
		assert.JSONEq(t, `{"transactionCode":"TX-1234","bank":"EQUITY","account":"00112233"}`, string(pmt.Payload))

		be.mu.Lock()
		defer be.mu.Unlock()
		assert.Equal(t, map[string]interface{}{"courseId": "go-101", "amount": float64(5000), "discountCode": "WELCOME"}, be.lastBody)
		assert.Equal(t, "Bearer s3cr3t", be.authToken)
		require.Len(t, be.idemKeys, 1)
		_, err = uuid.Parse(be.idemKeys[0])
		assert.NoError(t, err, "Idempotency-Key must be a uuid")
	})

	t.Run("no discount code", func(t *testing.T) {
		_, err := gw.CreatePayment(ctx, payment.NewPayment{CourseID: "go-102", Amount: 100})
		require.NoError(t, err)

		be.mu.Lock()
		defer be.mu.Unlock()
		_, found := be.lastBody["discountCode"]
		assert.False(t, found)
		assert.NotEqual(t, be.idemKeys[0], be.idemKeys[1], "every request gets its own key")
	})

	t.Run("rejected by backend", func(t *testing.T) {
		_, err := gw.CreatePayment(ctx, payment.NewPayment{CourseID: "sold-out", Amount: 100})
		var gwErr *payment.GatewayError
		require.True(t, errors.As(err, &gwErr), "got %v", err)
		assert.Equal(t, http.StatusConflict, gwErr.StatusCode)
		assert.Equal(t, "This course is no longer available.", gwErr.Message)
		assert.True(t, gwErr.IsClientError())
	})

	t.Run("backend failure with plain body", func(t *testing.T) {
		_, err := gw.CreatePayment(ctx, payment.NewPayment{CourseID: "broken", Amount: 100})
		var gwErr *payment.GatewayError
		require.True(t, errors.As(err, &gwErr), "got %v", err)
		assert.Equal(t, http.StatusBadGateway, gwErr.StatusCode)
		assert.Equal(t, "upstream bank unavailable", gwErr.Message)
		assert.False(t, gwErr.IsClientError())
	})

	t.Run("no transaction code", func(t *testing.T) {
		_, err := gw.CreatePayment(ctx, payment.NewPayment{CourseID: "empty", Amount: 100})
		assert.EqualError(t, err, "payments backend returned no transaction code")
	})
}

func TestRESTGateway_CheckStatus(t *testing.T) {
	_, gw := newBackend(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		code     payment.TransactionCode
		wantPaid bool
		wantCode int
	}{
		{name: "paid", code: "PAID-0001", wantPaid: true},
		{name: "not paid", code: "OPEN-0001"},
		{name: "unknown", code: "LOST-0001", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paid, err := gw.CheckStatus(ctx, tt.code)
			if tt.wantCode != 0 {
				var gwErr *payment.GatewayError
				require.True(t, errors.As(err, &gwErr), "got %v", err)
				assert.Equal(t, tt.wantCode, gwErr.StatusCode)
				assert.Equal(t, "unknown transaction", gwErr.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPaid, paid)
		})
	}
}

func TestRESTGateway_ExpirePayment(t *testing.T) {
	be, gw := newBackend(t)
	ctx := context.Background()

	require.NoError(t, gw.ExpirePayment(ctx, "OPEN-0001"))
	be.mu.Lock()
	assert.Equal(t, []string{"OPEN-0001"}, be.expired)
	be.mu.Unlock()

	err := gw.ExpirePayment(ctx, "LOST-0001")
	var gwErr *payment.GatewayError
	require.True(t, errors.As(err, &gwErr), "got %v", err)
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
	assert.Equal(t, "Not Found", gwErr.Message)
}

func TestRESTGateway_contextDeadline(t *testing.T) {
	_, gw := newBackend(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := gw.CheckStatus(ctx, "SLOW-0001")
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, int64(time.Since(start)), int64(250*time.Millisecond))
}
