package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/core/payment"
)

const idempotencyHeader = "Idempotency-Key"

type createRequest struct {
	CourseID     string `json:"courseId"`
	Amount       int64  `json:"amount"`
	DiscountCode string `json:"discountCode,omitempty"`
}

type createResponse struct {
	TransactionCode string `json:"transactionCode"`
}

type statusResponse struct {
	IsPaid bool `json:"isPaid"`
}

// errorResponse covers the error bodies the payments backend is known to send.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// RESTGateway is the payment.Gateway of the payments backend HTTP API.
type RESTGateway struct {
	client *resty.Client
}

var _ payment.Gateway = (*RESTGateway)(nil) // interface compliance check

func NewRESTGateway(conf *core.Config) *RESTGateway {
	client := resty.New().
		SetBaseURL(strings.TrimRight(conf.Payments.BaseURL, "/")).
		SetTimeout(conf.Payments.RequestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", conf.AppName+"/"+conf.Build)
	if conf.Payments.APIToken != "" {
		client.SetAuthToken(conf.Payments.APIToken)
	}
	return &RESTGateway{client: client}
}

func (gw *RESTGateway) CreatePayment(ctx context.Context, np payment.NewPayment) (payment.Payment, error) {
	var out createResponse
	resp, err := gw.client.R().
		SetContext(ctx).
		SetHeader(idempotencyHeader, uuid.New().String()).
		SetBody(createRequest{CourseID: np.CourseID, Amount: np.Amount, DiscountCode: np.DiscountCode}).
		SetResult(&out).
		Post("/payments")
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "POST /payments")
	}
	if resp.IsError() {
		return payment.Payment{}, gatewayError(resp)
	}
	if out.TransactionCode == "" {
		return payment.Payment{}, errors.New("payments backend returned no transaction code")
	}

	return payment.Payment{
		TransactionCode: payment.TransactionCode(out.TransactionCode),
		CourseID:        np.CourseID,
		Amount:          np.Amount,
		DiscountCode:    np.DiscountCode,
		Payload:         json.RawMessage(resp.Body()),
	}, nil
}

func (gw *RESTGateway) CheckStatus(ctx context.Context, code payment.TransactionCode) (bool, error) {
	var out statusResponse
	resp, err := gw.client.R().
		SetContext(ctx).
		SetPathParam("code", code.String()).
		SetResult(&out).
		Get("/payments/{code}/status")
	if err != nil {
		return false, errors.Wrapf(err, "GET /payments/%s/status", code)
	}
	if resp.IsError() {
		return false, gatewayError(resp)
	}
	return out.IsPaid, nil
}

func (gw *RESTGateway) ExpirePayment(ctx context.Context, code payment.TransactionCode) error {
	resp, err := gw.client.R().
		SetContext(ctx).
		SetPathParam("code", code.String()).
		Post("/payments/{code}/expire")
	if err != nil {
		return errors.Wrapf(err, "POST /payments/%s/expire", code)
	}
	if resp.IsError() {
		return gatewayError(resp)
	}
	return nil
}

// gatewayError keeps the backend message verbatim; bodies that are not JSON are used as is.
func gatewayError(resp *resty.Response) *payment.GatewayError {
	msg := ""
	var body errorResponse
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		msg = body.Message
		if msg == "" {
			msg = body.Error
		}
	} else {
		msg = strings.TrimSpace(string(resp.Body()))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return &payment.GatewayError{StatusCode: resp.StatusCode(), Message: msg}
}
