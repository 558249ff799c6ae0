package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/solweekly/weekly-roundup/internal/content"
	"github.com/solweekly/weekly-roundup/internal/domain"
	"github.com/solweekly/weekly-roundup/internal/newsletter"
	"github.com/solweekly/weekly-roundup/internal/provider"
	"github.com/solweekly/weekly-roundup/internal/worker"
)

// Delivery kinds passed to DispatchHooks.OnDelivery.
const (
	KindSend = "send"
	KindTest = "test"
)

// RecipientLister yields the current subscriber list. *Registry implements it.
type RecipientLister interface {
	List(ctx context.Context) []string
}

// DispatchHooks carries optional metric callbacks injected by main.
type DispatchHooks struct {
	OnDelivery func(kind string, ok bool)
}

// DispatcherOptions holds the scalar settings of a Dispatcher.
type DispatcherOptions struct {
	From string
	// MissingSender names the variables to set when sender is nil.
	MissingSender []string
	Hooks         DispatchHooks
	// Now stamps the footer of rendered emails. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher renders a roundup and delivers it to every subscriber.
// Each send is an ephemeral job: nothing is persisted and nothing is retried.
type Dispatcher struct {
	auth       *AdminAuth
	articles   content.Source
	recipients RecipientLister
	sender     provider.Sender
	renderer   *newsletter.Renderer
	runner     *worker.BatchRunner
	opts       DispatcherOptions
	logger     *zap.Logger
}

// NewDispatcher wires a dispatcher. sender may be nil when no email provider
// is configured; sends then fail with a configuration error.
func NewDispatcher(
	auth *AdminAuth,
	articles content.Source,
	recipients RecipientLister,
	sender provider.Sender,
	renderer *newsletter.Renderer,
	runner *worker.BatchRunner,
	opts DispatcherOptions,
	logger *zap.Logger,
) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Hooks.OnDelivery == nil {
		opts.Hooks.OnDelivery = func(string, bool) {}
	}
	return &Dispatcher{
		auth:       auth,
		articles:   articles,
		recipients: recipients,
		sender:     sender,
		renderer:   renderer,
		runner:     runner,
		opts:       opts,
		logger:     logger,
	}
}

// Send delivers the roundup identified by slug (latest when empty) to every
// subscriber. Once recipients are resolved it never fails: partial and total
// delivery failure are reported in the SendReport.
func (d *Dispatcher) Send(ctx context.Context, slug, adminKey string) (*domain.SendReport, error) {
	if err := d.auth.Check(adminKey); err != nil {
		return nil, err
	}
	if err := d.senderReady(); err != nil {
		return nil, err
	}

	article, err := d.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}

	recipients := d.recipients.List(ctx)
	if len(recipients) == 0 {
		return nil, domain.ErrNoSubscribers
	}

	email, err := d.renderer.Render(article, newsletter.Options{GeneratedAt: d.opts.Now()})
	if err != nil {
		return nil, fmt.Errorf("render newsletter: %w", err)
	}

	log := d.logger.With(zap.String("slug", article.Slug), zap.Int("recipients", len(recipients)))
	log.Info("newsletter send started", zap.Int("batches", d.runner.Batches(len(recipients))))

	// A client disconnect must not abort a half-sent newsletter.
	sendCtx := context.WithoutCancel(ctx)
	outcomes := d.runner.Run(sendCtx, recipients, func(ctx context.Context, to string) domain.DeliveryOutcome {
		return d.deliver(ctx, KindSend, to, email, log)
	})

	report := &domain.SendReport{
		Slug:     article.Slug,
		Title:    article.Title,
		Total:    len(outcomes),
		Batches:  d.runner.Batches(len(recipients)),
		Outcomes: outcomes,
	}
	for _, o := range outcomes {
		if o.Success {
			report.Sent++
		} else {
			report.Failed++
		}
	}

	log.Info("newsletter send finished", zap.Int("sent", report.Sent), zap.Int("failed", report.Failed))
	return report, nil
}

// SendTest renders the roundup as a test email and sends it to one address.
// The address is never added to the registry.
func (d *Dispatcher) SendTest(ctx context.Context, slug, adminKey, to string) (*domain.TestSendResult, error) {
	if err := d.auth.Check(adminKey); err != nil {
		return nil, err
	}
	to, err := domain.ValidateEmail(to)
	if err != nil {
		return nil, err
	}
	if err := d.senderReady(); err != nil {
		return nil, err
	}

	article, err := d.resolve(ctx, slug)
	if err != nil {
		return nil, err
	}

	email, err := d.renderer.Render(article, newsletter.Options{Test: true, GeneratedAt: d.opts.Now()})
	if err != nil {
		return nil, fmt.Errorf("render newsletter: %w", err)
	}

	outcome := d.deliver(ctx, KindTest, to, email, d.logger.With(zap.String("slug", article.Slug)))
	if !outcome.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrDeliveryFailed, outcome.Error)
	}

	return &domain.TestSendResult{
		Slug:      article.Slug,
		Title:     article.Title,
		Recipient: to,
		MessageID: outcome.MessageID,
	}, nil
}

func (d *Dispatcher) deliver(ctx context.Context, kind, to string, email *domain.Email, log *zap.Logger) domain.DeliveryOutcome {
	resp, err := d.sender.Send(ctx, provider.Message{
		From:    d.opts.From,
		To:      to,
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
	})
	if err != nil {
		log.Warn("delivery failed", zap.String("kind", kind), zap.String("recipient", to), zap.Error(err))
		d.opts.Hooks.OnDelivery(kind, false)
		return domain.DeliveryOutcome{Recipient: to, Error: err.Error()}
	}
	d.opts.Hooks.OnDelivery(kind, true)
	return domain.DeliveryOutcome{Recipient: to, Success: true, MessageID: resp.MessageID}
}

func (d *Dispatcher) resolve(ctx context.Context, slug string) (*domain.Article, error) {
	var (
		a   *domain.Article
		err error
	)
	if slug == "" {
		a, err = d.articles.Latest(ctx)
	} else {
		a, err = d.articles.BySlug(ctx, slug)
	}
	if err != nil && !errors.Is(err, domain.ErrArticleNotFound) {
		return nil, fmt.Errorf("load roundup: %w", err)
	}
	return a, err
}

func (d *Dispatcher) senderReady() error {
	if d.sender != nil {
		return nil
	}
	return &domain.MissingConfigError{Feature: "newsletter delivery", Missing: d.opts.MissingSender}
}
