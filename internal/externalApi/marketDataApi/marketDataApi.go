package marketDataApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/KotFed0t/invest_ledger/config"
	"github.com/KotFed0t/invest_ledger/internal/externalApi"
	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/KotFed0t/invest_ledger/internal/model/marketDataModel"
	"github.com/KotFed0t/invest_ledger/utils"
	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
)

type Breaker interface {
	Allow() bool
	RecordSuccess()
	RecordFailure()
}

type CursorStore interface {
	GetCursor(ctx context.Context, symbol string) (token string, ok bool)
	UpdateCursor(ctx context.Context, symbol, token string) error
}

type MarketDataApi struct {
	client       *resty.Client
	breaker      Breaker
	cursors      CursorStore
	retry        externalApi.RetryPolicy
	maxScanPages int
}

func New(cfg *config.Config, breaker Breaker, cursors CursorStore, clock clockwork.Clock) *MarketDataApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.MarketDataApi.Url).
		SetHeader("Accept", "application/json")

	maxScanPages := cfg.API.MarketDataApi.MaxScanPages
	if maxScanPages <= 0 {
		maxScanPages = 1
	}

	return &MarketDataApi{
		client:  client,
		breaker: breaker,
		cursors: cursors,
		retry: externalApi.RetryPolicy{
			MaxRetries:   cfg.API.MarketDataApi.MaxRetries,
			InitialDelay: cfg.API.MarketDataApi.InitialRetryDelay,
			MaxDelay:     cfg.API.MarketDataApi.MaxRetryDelay,
			Clock:        clock,
		},
		maxScanPages: maxScanPages,
	}
}

// FetchPrice returns the current quote of symbol. When the provider has no direct
// quote for it, the paged listing is scanned starting from the symbol's stored cursor.
func (a *MarketDataApi) FetchPrice(ctx context.Context, symbol string) (quote model.Quote, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketDataApi.FetchPrice"

	slog.Debug("FetchPrice start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error("FetchPrice failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		} else {
			slog.Debug("FetchPrice completed", slog.String("rqID", rqID), slog.String("op", op), slog.Any("quote", quote))
		}
	}()

	err = a.guarded(ctx, func(ctx context.Context) error {
		q, err := a.getQuote(ctx, symbol)
		if errors.Is(err, externalApi.ErrNotFound) {
			slog.Debug("no direct quote, scanning listing", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
			q, err = a.scanQuotes(ctx, symbol)
		}
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return model.Quote{}, err
	}

	return quote, nil
}

// ExecutePurchase submits a purchase. The idempotency key of req is sent with every attempt.
func (a *MarketDataApi) ExecutePurchase(ctx context.Context, symbol string, req model.PurchaseRequest) (confirmation model.PurchaseConfirmation, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketDataApi.ExecutePurchase"

	slog.Debug("ExecutePurchase start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Any("request", req))
	defer func() {
		if err != nil {
			slog.Error("ExecutePurchase failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		} else {
			slog.Debug("ExecutePurchase completed", slog.String("rqID", rqID), slog.String("op", op), slog.Any("confirmation", confirmation))
		}
	}()

	body := marketDataModel.PurchaseRequest{
		PortfolioID: req.PortfolioID,
		Price:       req.Price,
		Quantity:    req.Quantity,
	}

	err = a.guarded(ctx, func(ctx context.Context) error {
		raw := marketDataModel.PurchaseConfirmation{}
		err := a.retry.Do(ctx, op, func(ctx context.Context) error {
			resp, err := a.client.R().
				SetContext(ctx).
				SetHeader("Idempotency-Key", req.IdempotencyKey).
				SetPathParam("symbol", symbol).
				SetBody(body).
				Post("/purchases/{symbol}")
			if err = checkResponse(resp, err); err != nil {
				return err
			}
			if err = json.Unmarshal(resp.Body(), &raw); err != nil {
				return fmt.Errorf("%w: can't unmarshall purchase confirmation: %v", externalApi.ErrUpstreamError, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if !raw.ConfirmedPrice.Equal(req.Price) {
			return fmt.Errorf("%w: requested %s, confirmed %s", externalApi.ErrPriceMismatch, req.Price, raw.ConfirmedPrice)
		}
		if raw.ConfirmedQuantity != req.Quantity {
			return fmt.Errorf("%w: requested quantity %d, confirmed %d", externalApi.ErrPriceMismatch, req.Quantity, raw.ConfirmedQuantity)
		}

		confirmation = model.PurchaseConfirmation{
			ConfirmationID:    raw.ConfirmationID,
			ConfirmedPrice:    raw.ConfirmedPrice,
			ConfirmedQuantity: raw.ConfirmedQuantity,
		}
		return nil
	})
	if err != nil {
		return model.PurchaseConfirmation{}, err
	}

	return confirmation, nil
}

// guarded consults the breaker and reports the overall outcome of fn to it exactly once.
func (a *MarketDataApi) guarded(ctx context.Context, fn func(ctx context.Context) error) error {
	if !a.breaker.Allow() {
		return externalApi.ErrCircuitOpen
	}

	err := fn(ctx)
	if reachedUpstream(err) {
		a.breaker.RecordSuccess()
	} else {
		a.breaker.RecordFailure()
	}

	return err
}

// reachedUpstream is true when the provider answered, even with a rejection.
func reachedUpstream(err error) bool {
	return err == nil ||
		errors.Is(err, externalApi.ErrNotFound) ||
		errors.Is(err, externalApi.ErrClient) ||
		errors.Is(err, externalApi.ErrPriceMismatch)
}

func (a *MarketDataApi) getQuote(ctx context.Context, symbol string) (model.Quote, error) {
	op := "MarketDataApi.getQuote"
	raw := marketDataModel.Quote{}

	err := a.retry.Do(ctx, op, func(ctx context.Context) error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetPathParam("symbol", symbol).
			Get("/quotes/{symbol}")
		if err = checkResponse(resp, err); err != nil {
			return err
		}
		if err = json.Unmarshal(resp.Body(), &raw); err != nil {
			return fmt.Errorf("%w: can't unmarshall quote: %v", externalApi.ErrUpstreamError, err)
		}
		return nil
	})
	if err != nil {
		return model.Quote{}, err
	}

	if raw.PageToken != "" {
		a.updateCursor(ctx, symbol, raw.PageToken)
	}

	return model.Quote{Symbol: symbol, Name: raw.Name, Price: raw.Price, PageToken: raw.PageToken}, nil
}

func (a *MarketDataApi) getQuotesPage(ctx context.Context, pageToken string) (marketDataModel.QuotesPage, error) {
	op := "MarketDataApi.getQuotesPage"
	page := marketDataModel.QuotesPage{}

	err := a.retry.Do(ctx, op, func(ctx context.Context) error {
		r := a.client.R().SetContext(ctx)
		if pageToken != "" {
			r.SetQueryParam("pageToken", pageToken)
		}
		resp, err := r.Get("/quotes")
		if err = checkResponse(resp, err); err != nil {
			return err
		}
		if err = json.Unmarshal(resp.Body(), &page); err != nil {
			return fmt.Errorf("%w: can't unmarshall quotes page: %v", externalApi.ErrUpstreamError, err)
		}
		return nil
	})

	return page, err
}

// scanQuotes walks the listing from the symbol's cursor to the end, then once from
// the first page up to where it started.
func (a *MarketDataApi) scanQuotes(ctx context.Context, symbol string) (model.Quote, error) {
	start, _ := a.cursors.GetCursor(ctx, symbol)
	token := start
	wrapped := start == ""

	for page := 0; page < a.maxScanPages; page++ {
		p, err := a.getQuotesPage(ctx, token)
		if err != nil {
			return model.Quote{}, err
		}

		for _, q := range p.Quotes {
			if q.Symbol == symbol {
				a.updateCursor(ctx, symbol, token)
				return model.Quote{Symbol: symbol, Name: q.Name, Price: q.Price, PageToken: token}, nil
			}
		}

		switch {
		case p.NextPageToken == "" && wrapped:
			return model.Quote{}, fmt.Errorf("%w: symbol %s", externalApi.ErrNotFound, symbol)
		case p.NextPageToken == "":
			wrapped = true
			token = ""
		case wrapped && p.NextPageToken == start:
			return model.Quote{}, fmt.Errorf("%w: symbol %s", externalApi.ErrNotFound, symbol)
		default:
			token = p.NextPageToken
		}
	}

	return model.Quote{}, fmt.Errorf("%w: symbol %s not found in %d pages", externalApi.ErrNotFound, symbol, a.maxScanPages)
}

func (a *MarketDataApi) updateCursor(ctx context.Context, symbol, token string) {
	if err := a.cursors.UpdateCursor(ctx, symbol, token); err != nil {
		slog.Warn(
			"can't update pagination cursor",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.String("symbol", symbol),
			slog.String("err", err.Error()),
		)
	}
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("%w: %v", externalApi.ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("%w: %v", externalApi.ErrUpstreamError, err)
	}

	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}

	errResp := marketDataModel.ErrorResponse{}
	if err = json.Unmarshal(resp.Body(), &errResp); err != nil {
		slog.Debug("error response is not {code,message}", slog.Int("status", resp.StatusCode()), slog.String("body", string(resp.Body())))
	}

	switch {
	case code == 404:
		return fmt.Errorf("%w: status %d %s", externalApi.ErrNotFound, code, errResp.Message)
	case code == 429 || code >= 500:
		return fmt.Errorf("%w: status %d %s %s", externalApi.ErrUpstreamError, code, errResp.Code, errResp.Message)
	default:
		return fmt.Errorf("%w: status %d %s %s", externalApi.ErrClient, code, errResp.Code, errResp.Message)
	}
}
