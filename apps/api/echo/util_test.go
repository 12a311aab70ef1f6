package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/core/payment"
	"github.com/trezcool/masomopay/services/email"
	"github.com/trezcool/masomopay/services/notify"
	"github.com/trezcool/masomopay/storage/ledger/inmem"
	"github.com/trezcool/masomopay/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken = httpErr{Error: "invalid or expired jwt"}
	errNotFound     = httpErr{Error: "not found"}

	hero = core.Person{ID: "42", Username: "hero", Email: "hero@test.cd", Name: "Hero"}
)

type apiEnv struct {
	conf    *core.Config
	server  *Server
	gw      *testutil.FakeGateway
	store   *inmem.Store
	hooks   *testutil.HookedStore // replaces store in ledgers when set
	logger  *testutil.Logger
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) *apiEnv {
	t.Helper()

	env := &apiEnv{
		conf:   testutil.NewConfig(),
		gw:     testutil.NewFakeGateway(),
		store:  inmem.NewStore(),
		logger: testutil.NewLogger(),
	}
	translator := core.NewTranslator()

	// set up services
	env.mailSvc = emailsvc.NewConsoleServiceMock(env.conf, env.logger)
	mailer := notify.NewMailer(env.conf, env.mailSvc, env.logger)
	poller := payment.NewPoller(env.gw, env.logger, payment.OptionsFromConfig(env.conf.Payments))
	paymentSvc := payment.NewService(env.gw, poller, env.logger, core.NewValidator(translator))

	// set up server
	env.server = NewServer(ServerDeps{
		Conf:       env.conf,
		Logger:     env.logger,
		Translator: translator,
		PaymentSvc: paymentSvc,
		Ledgers:    env.ledger,
		Actions:    mailer.For,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = env.server.Shutdown(ctx)
	})
	return env
}

func (env *apiEnv) ledger(studentID string) payment.StatusLedger {
	var store payment.Store = env.store
	if env.hooks != nil {
		store = env.hooks
	}
	return payment.NewLedger(store, env.conf.Ledger.KeyPrefix, studentID, env.logger)
}

func (env *apiEnv) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	env.server.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, claims *Claims) string {
	token, err := GenerateToken(conf.SecretKey, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func getStudentToken(t *testing.T, conf *core.Config, p core.Person) string {
	return getToken(t, conf, NewStudentClaims(conf.AppName, p, time.Hour))
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshallObj(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		if rec.Body.Len() != 0 {
			t.Errorf("failed! data = %v; want no data", rec.Body.String())
		}
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
