package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/core/payment"
)

// LedgerFactory returns the ledger of a student.
type LedgerFactory func(studentID string) payment.StatusLedger

// ActionsFactory returns what happens once the payment of student for courseID resolves.
type ActionsFactory func(student core.Person, courseID string) payment.Actions

type (
	checkoutStatus struct {
		TransactionCode payment.TransactionCode `json:"transaction_code"`
		Status          payment.Status          `json:"status"`
		RedirectURL     string                  `json:"redirect_url,omitempty"`
	}

	checkoutCreated struct {
		checkoutStatus
		Payment payment.Payment `json:"payment"`
	}
)

type checkoutAPI struct {
	svc             *payment.Service
	ledgers         LedgerFactory
	actions         ActionsFactory
	sessions        *sessionRegistry
	frontendBaseURL string
}

func registerCheckoutAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *checkoutAPI) {
	cg := g.Group("/checkout", jwt, studentMiddleware)
	cg.POST("", api.create)

	dg := cg.Group("/:code")
	dg.GET("", api.retrieve)
	dg.POST("/resume", api.resume)
	dg.DELETE("", api.cancel)
}

func (api *checkoutAPI) status(s *payment.Session, courseID string) checkoutStatus {
	st := s.Outcome()
	if st == payment.StatusCancelled {
		st = payment.StatusPending
	}
	return checkoutStatus{
		TransactionCode: s.Code(),
		Status:          st,
		RedirectURL:     payment.RedirectURL(api.frontendBaseURL, st, courseID),
	}
}

func (api *checkoutAPI) entryStatus(entry payment.LedgerEntry, courseID string) checkoutStatus {
	return checkoutStatus{
		TransactionCode: entry.TransactionCode,
		Status:          entry.Status,
		RedirectURL:     payment.RedirectURL(api.frontendBaseURL, entry.Status, courseID),
	}
}

func (api *checkoutAPI) pathCode(ctx echo.Context) (payment.TransactionCode, error) {
	code := payment.TransactionCode(core.CleanString(ctx.Param("code")))
	if err := api.svc.ValidateCode(code); err != nil {
		return "", core.NewValidationError(err, core.FieldError{Field: "transaction_code", Error: "invalid transaction code"})
	}
	return code, nil
}

// Handlers

func (api *checkoutAPI) create(ctx echo.Context) error {
	student, err := getContextStudent(ctx)
	if err != nil {
		return err
	}

	data := new(payment.NewPayment)
	if err = ctx.Bind(data); err != nil {
		return err
	}

	// the previous checkout must not resolve once the new one exists
	var prev *payment.Session
	if live, ok := api.sessions.current(student.ID); ok {
		prev = live.session
	}

	pmt, s, err := api.svc.Replace(
		ctx.Request().Context(),
		prev,
		api.ledgers(student.ID),
		*data,
		api.actions(student, core.CleanString(data.CourseID)),
	)
	if err != nil {
		return err
	}
	api.sessions.open(student.ID, pmt.CourseID, s)

	return ctx.JSON(http.StatusCreated, checkoutCreated{
		checkoutStatus: api.status(s, pmt.CourseID),
		Payment:        pmt,
	})
}

func (api *checkoutAPI) retrieve(ctx echo.Context) error {
	student, err := getContextStudent(ctx)
	if err != nil {
		return err
	}
	code, err := api.pathCode(ctx)
	if err != nil {
		return err
	}

	if live, ok := api.sessions.get(student.ID, code); ok {
		return ctx.JSON(http.StatusOK, api.status(live.session, live.courseID))
	}

	entry, err := api.svc.Lookup(api.ledgers(student.ID), code)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.entryStatus(entry, ctx.QueryParam("course_id")))
}

func (api *checkoutAPI) resume(ctx echo.Context) error {
	student, err := getContextStudent(ctx)
	if err != nil {
		return err
	}
	code, err := api.pathCode(ctx)
	if err != nil {
		return err
	}
	courseID := core.CleanString(ctx.QueryParam("course_id"))

	if live, ok := api.sessions.current(student.ID); ok {
		switch {
		case live.session.Code() == code && live.session.Outcome() != payment.StatusCancelled:
			// the page was only reloaded: keep the session already polling
			return ctx.JSON(http.StatusOK, api.status(live.session, live.courseID))

		case live.session.Code() != code && live.session.Outcome() == payment.StatusPending:
			// an older code never displaces the checkout still polling
			entry, err := api.svc.Lookup(api.ledgers(student.ID), code)
			if err != nil {
				return errHTTPConflict
			}
			return ctx.JSON(http.StatusOK, api.entryStatus(entry, courseID))
		}
	}

	s, err := api.svc.Resume(api.ledgers(student.ID), code, api.actions(student, courseID))
	if err != nil {
		return err
	}
	api.sessions.open(student.ID, courseID, s)
	return ctx.JSON(http.StatusOK, api.status(s, courseID))
}

func (api *checkoutAPI) cancel(ctx echo.Context) error {
	student, err := getContextStudent(ctx)
	if err != nil {
		return err
	}
	code, err := api.pathCode(ctx)
	if err != nil {
		return err
	}

	if !api.sessions.close(student.ID, code) {
		return errHTTPNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}
