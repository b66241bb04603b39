// Package dispatch runs the automated broadcast: one pass walks every user's
// automation config, and for each user that is due picks the next product of
// the rotation, composes the message and delivers it to the user's chats.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foxzi/ofertabot/internal/automation"
	"github.com/foxzi/ofertabot/internal/composer"
	"github.com/foxzi/ofertabot/internal/lock"
	"github.com/foxzi/ofertabot/internal/metrics"
	"github.com/foxzi/ofertabot/internal/models"
	"github.com/foxzi/ofertabot/internal/repository"
	"github.com/foxzi/ofertabot/internal/whatsapp"
)

// DefaultTestMessage is sent by DirectTest when no message is given
const DefaultTestMessage = "✅ Teste de conexão Green API!"

// ConfigStore reads and updates automation configs
type ConfigStore interface {
	ListUserIDs(ctx context.Context) ([]string, error)
	GetOrDefault(ctx context.Context, userID string) (*models.AutomationConfig, error)
	// SaveRotation must fail with repository.ErrVersionConflict when the
	// stored version differs from cfg.Version.
	SaveRotation(ctx context.Context, cfg *models.AutomationConfig) error
}

// CredentialStore returns a user's messaging credentials, nil if none
type CredentialStore interface {
	Get(ctx context.Context, userID string) (*models.MessagingCredentials, error)
}

// ProductSource lists a user's active products
type ProductSource interface {
	ListActive(ctx context.Context, userID string) ([]models.Product, error)
}

// TemplateSource returns a user's saved sales template
type TemplateSource interface {
	SalesTemplate(ctx context.Context, userID string) (string, error)
}

// ScheduleLog records sends
type ScheduleLog interface {
	Append(ctx context.Context, e *models.ScheduleEntry) (string, error)
}

// Gateway delivers a text to one chat and returns the gateway's message id
type Gateway interface {
	Send(ctx context.Context, ep whatsapp.Endpoint, chatID, text string) (string, error)
}

// ReportStore keeps finished pass reports
type ReportStore interface {
	Save(r *Report) error
}

// RotationPolicy decides what happens to the rotation cursor when a send
// did not reach every destination
type RotationPolicy string

const (
	// RotationRetry leaves the cursor on the failed product
	RotationRetry RotationPolicy = "retry"
	// RotationConsume advances past the failed product
	RotationConsume RotationPolicy = "consume"
)

// Valid reports whether p is a known policy
func (p RotationPolicy) Valid() bool {
	return p == RotationRetry || p == RotationConsume
}

// Deps are the collaborators of a Worker. Reports and Locker are optional.
type Deps struct {
	Configs     ConfigStore
	Credentials CredentialStore
	Products    ProductSource
	Templates   TemplateSource
	Log         ScheduleLog
	Gateway     Gateway
	Reports     ReportStore
	Locker      lock.Locker
}

// Config holds worker configuration
type Config struct {
	Location          *time.Location
	DefaultBaseURL    string
	DestinationDelay  time.Duration
	Concurrency       int
	PollInterval      time.Duration
	RotationOnFailure RotationPolicy
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		Location:          time.UTC,
		DefaultBaseURL:    whatsapp.DefaultBaseURL,
		DestinationDelay:  time.Second,
		Concurrency:       4,
		PollInterval:      time.Minute,
		RotationOnFailure: RotationRetry,
	}
}

// Worker runs dispatch passes, either on its own ticker or on demand
type Worker struct {
	deps   Deps
	cfg    Config
	gate   *automation.Gate
	logger *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new worker
func New(deps Deps, cfg Config, logger *slog.Logger) *Worker {
	def := DefaultConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.DefaultBaseURL == "" {
		cfg.DefaultBaseURL = def.DefaultBaseURL
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if !cfg.RotationOnFailure.Valid() {
		cfg.RotationOnFailure = def.RotationOnFailure
	}
	if deps.Locker == nil {
		deps.Locker = lock.Noop{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		deps:   deps,
		cfg:    cfg,
		gate:   automation.NewGate(cfg.Location),
		logger: logger.With("component", "dispatch"),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:    time.Now,
		sleep:  sleepCtx,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the periodic pass loop
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("dispatch worker started",
		"poll_interval", w.cfg.PollInterval,
		"concurrency", w.cfg.Concurrency,
		"timezone", w.cfg.Location.String(),
		"rotation_on_failure", w.cfg.RotationOnFailure)
}

// Stop stops the loop and waits for a running pass to finish
func (w *Worker) Stop() {
	w.logger.Info("stopping dispatch worker...")
	w.cancel()
	w.wg.Wait()
	w.logger.Info("dispatch worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunPass(w.ctx, w.now()); err != nil {
				w.logger.Error("dispatch pass failed", "error", err)
			}
		}
	}
}

// RunPass processes every user with a stored automation config once. Users
// are handled in parallel up to Concurrency; a failure for one user,
// including an unreadable config, is recorded in its outcome and never stops
// the others. The returned error is set only when the users could not be
// listed.
func (w *Worker) RunPass(ctx context.Context, now time.Time) (*Report, error) {
	report := &Report{ID: uuid.New().String(), StartedAt: now}

	users, err := w.deps.Configs.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list automation users: %w", err)
	}

	report.Outcomes = make([]Outcome, len(users))
	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup

	for i := range users {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer func() {
				<-sem
				wg.Done()
			}()
			report.Outcomes[i] = w.safeProcess(ctx, users[i], now)
		}(i)
	}
	wg.Wait()

	report.FinishedAt = w.now()
	if report.FinishedAt.Before(report.StartedAt) {
		report.FinishedAt = report.StartedAt
	}
	metrics.ObservePass(report.Duration(), report.FinishedAt)
	w.saveReport(report)

	w.logger.Info("dispatch pass finished",
		"report_id", report.ID,
		"users", len(users),
		"sent", report.Counts()[StatusSent],
		"failed", report.Counts()[StatusFailed],
		"duration", report.Duration())

	return report, nil
}

func (w *Worker) safeProcess(ctx context.Context, userID string, now time.Time) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic while dispatching", "user_id", userID, "panic", r)
			out = Outcome{UserID: userID, Status: StatusError, Error: fmt.Sprintf("panic: %v", r)}
		}
		metrics.IncDispatchOutcome(string(out.Status))
	}()
	return w.processUser(ctx, userID, now)
}

func (w *Worker) processUser(ctx context.Context, userID string, now time.Time) Outcome {
	logger := w.logger.With("user_id", userID)
	out := Outcome{UserID: userID}

	cfg, err := w.deps.Configs.GetOrDefault(ctx, userID)
	if err != nil {
		return failOutcome(logger, out, "failed to load automation config", err)
	}

	if d := w.gate.Check(cfg, now); !d.Permitted {
		logger.Debug("dispatch skipped", "reason", d.Reason)
		out.Status = skippedBy(d.Reason)
		return out
	}

	l, ok, err := w.deps.Locker.Acquire(ctx, "dispatch:"+cfg.UserID)
	if err != nil {
		return failOutcome(logger, out, "failed to acquire user lock", err)
	}
	if !ok {
		logger.Info("dispatch skipped, user locked by another pass")
		out.Status = StatusLocked
		return out
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release user lock", "error", err)
		}
	}()

	// The first read may be stale once the lock is held.
	cfg, err = w.deps.Configs.GetOrDefault(ctx, cfg.UserID)
	if err != nil {
		return failOutcome(logger, out, "failed to reload automation config", err)
	}
	if d := w.gate.Check(cfg, now); !d.Permitted {
		logger.Debug("dispatch skipped after reload", "reason", d.Reason)
		out.Status = skippedBy(d.Reason)
		return out
	}

	creds, products, status, err := w.prepare(ctx, cfg.UserID)
	if err != nil {
		return failOutcome(logger, out, "failed to load dispatch inputs", err)
	}
	if status != "" {
		logger.Debug("dispatch skipped", "reason", status)
		out.Status = status
		return out
	}

	pick, err := w.nextProduct(cfg.Rotation(), models.EligibleIDs(products))
	if errors.Is(err, automation.ErrNoEligibleProduct) {
		logger.Debug("dispatch skipped, no eligible product", "active_products", len(products))
		out.Status = StatusNoEligibleProduct
		return out
	}
	if err != nil {
		return failOutcome(logger, out, "failed to pick product", err)
	}
	if pick.Reshuffled {
		logger.Debug("rotation reshuffled", "size", len(pick.State.ShuffledProductIDs))
	}

	product := findProduct(products, pick.ProductID)
	out = w.send(ctx, logger, cfg.UserID, creds, product, now)

	state := pick.State
	if out.Status == StatusFailed && w.cfg.RotationOnFailure == RotationRetry {
		state = pick.Unconsumed()
	}
	cfg.ApplyRotation(state)
	sentAt := now
	cfg.LastSentAt = &sentAt

	if err := w.deps.Configs.SaveRotation(ctx, cfg); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			logger.Warn("rotation not saved, config changed by a concurrent pass", "product_id", product.ID)
			metrics.IncRotationConflict()
			out.Conflict = true
		} else {
			logger.Error("failed to save rotation state", "error", err)
			out.Error = joinError(out.Error, fmt.Sprintf("save rotation: %v", err))
		}
	}

	return out
}

// prepare loads credentials and products. A non-empty status means the user
// must be skipped.
func (w *Worker) prepare(ctx context.Context, userID string) (*models.MessagingCredentials, []models.Product, Status, error) {
	creds, err := w.deps.Credentials.Get(ctx, userID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("credentials: %w", err)
	}
	if !creds.Complete() {
		return nil, nil, StatusNotConfigured, nil
	}

	products, err := w.deps.Products.ListActive(ctx, userID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("products: %w", err)
	}
	if len(products) == 0 {
		return nil, nil, StatusNoProducts, nil
	}
	return creds, products, "", nil
}

// send composes and delivers the message and logs it in the schedule
func (w *Worker) send(ctx context.Context, logger *slog.Logger, userID string, creds *models.MessagingCredentials, p *models.Product, now time.Time) Outcome {
	out := Outcome{UserID: userID, ProductID: p.ID, ProductTitle: p.Title}

	template, err := w.deps.Templates.SalesTemplate(ctx, userID)
	if err != nil {
		logger.Warn("failed to load sales template, using default", "error", err)
		template = ""
	}
	text := composer.Compose(p, template)

	out.Deliveries = w.deliver(ctx, logger, creds, text)
	out.Status = StatusSent
	var errs []string
	for _, d := range out.Deliveries {
		if !d.OK() {
			out.Status = StatusFailed
			errs = append(errs, d.ChatID+": "+d.Error)
		}
	}

	entry := &models.ScheduleEntry{
		UserID:        userID,
		ProductID:     p.ID,
		ProductTitle:  p.Title,
		ProductImage:  p.Image,
		ScheduledTime: now,
		Status:        models.StatusSent,
		Platform:      models.PlatformWhatsApp,
		Frequency:     models.FrequencyOnce,
	}
	if out.Status == StatusFailed {
		entry.Status = models.StatusFailed
		entry.Error = strings.Join(errs, "; ")
	}

	id, err := w.deps.Log.Append(ctx, entry)
	if err != nil {
		logger.Error("failed to record send in schedule log", "error", err)
		out.Error = fmt.Sprintf("schedule log: %v", err)
	}
	out.EntryID = id

	logger.Info("dispatch send finished",
		"product_id", p.ID,
		"status", out.Status,
		"destinations", len(out.Deliveries))

	return out
}

// deliver sends text to every destination in order, pausing between them.
// A failed destination does not stop the remaining ones.
func (w *Worker) deliver(ctx context.Context, logger *slog.Logger, creds *models.MessagingCredentials, text string) []Delivery {
	ep := whatsapp.EndpointFor(creds, w.cfg.DefaultBaseURL)
	chats := creds.ChatIDs()
	deliveries := make([]Delivery, 0, len(chats))

	for i, chatID := range chats {
		if i > 0 && w.cfg.DestinationDelay > 0 {
			if err := w.sleep(ctx, w.cfg.DestinationDelay); err != nil {
				deliveries = append(deliveries, Delivery{ChatID: chatID, Error: err.Error()})
				metrics.IncGatewaySend("error")
				continue
			}
		}

		id, err := w.deps.Gateway.Send(ctx, ep, chatID, text)
		if err != nil {
			logger.Warn("delivery failed", "chat_id", chatID, "error", err)
			deliveries = append(deliveries, Delivery{ChatID: chatID, Error: err.Error()})
			metrics.IncGatewaySend("error")
			continue
		}
		logger.Debug("delivered", "chat_id", chatID, "delivery_id", id)
		deliveries = append(deliveries, Delivery{ChatID: chatID, DeliveryID: id})
		metrics.IncGatewaySend("ok")
	}
	return deliveries
}

// TestSend sends a uniformly sampled eligible product to the user's chats
// right away. It ignores the time window and never touches the rotation or
// lastSentAt; the send is still written to the schedule log.
func (w *Worker) TestSend(ctx context.Context, userID string) Outcome {
	logger := w.logger.With("user_id", userID, "test", true)
	now := w.now()
	out := Outcome{UserID: userID}

	creds, products, status, err := w.prepare(ctx, userID)
	switch {
	case err != nil:
		out = failOutcome(logger, out, "failed to load dispatch inputs", err)
	case status != "":
		out.Status = status
	default:
		id, err := w.sample(models.EligibleIDs(products))
		if err != nil {
			out.Status = StatusNoEligibleProduct
			break
		}
		out = w.send(ctx, logger, userID, creds, findProduct(products, id), now)
	}

	metrics.IncDispatchOutcome(string(out.Status))
	finished := w.now()
	w.saveReport(&Report{ID: uuid.New().String(), StartedAt: now, FinishedAt: finished, Test: true, Outcomes: []Outcome{out}})
	return out
}

// DirectTest checks a gateway connection by sending message to chatID with
// creds. Only the instance id and token of creds are required.
func (w *Worker) DirectTest(ctx context.Context, creds *models.MessagingCredentials, chatID, message string) (string, error) {
	if creds == nil || creds.InstanceID == "" || creds.Token == "" {
		return "", whatsapp.ErrNotConfigured
	}
	chatID = models.NormalizeChatID(chatID)
	if chatID == "" {
		return "", fmt.Errorf("%w: chat id is required", whatsapp.ErrNotConfigured)
	}
	if strings.TrimSpace(message) == "" {
		message = DefaultTestMessage
	}

	id, err := w.deps.Gateway.Send(ctx, whatsapp.EndpointFor(creds, w.cfg.DefaultBaseURL), chatID, message)
	if err != nil {
		metrics.IncGatewaySend("error")
		w.logger.Warn("direct test failed", "chat_id", chatID, "error", err)
		return "", err
	}
	metrics.IncGatewaySend("ok")
	w.logger.Info("direct test delivered", "chat_id", chatID, "delivery_id", id)
	return id, nil
}

func (w *Worker) nextProduct(state models.RotationState, eligible []string) (automation.Pick, error) {
	w.rngMu.Lock()
	defer w.rngMu.Unlock()
	return automation.Next(state, eligible, w.rng)
}

func (w *Worker) sample(eligible []string) (string, error) {
	w.rngMu.Lock()
	defer w.rngMu.Unlock()
	return automation.Sample(eligible, w.rng)
}

func (w *Worker) saveReport(r *Report) {
	if w.deps.Reports == nil {
		return
	}
	if err := w.deps.Reports.Save(r); err != nil {
		w.logger.Error("failed to save dispatch report", "report_id", r.ID, "error", err)
	}
}

func failOutcome(logger *slog.Logger, out Outcome, msg string, err error) Outcome {
	logger.Error(msg, "error", err)
	out.Status = StatusError
	out.Error = err.Error()
	return out
}

func findProduct(products []models.Product, id string) *models.Product {
	for i := range products {
		if products[i].ID == id {
			return &products[i]
		}
	}
	return nil
}

func joinError(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + "; " + add
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
