package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/qcoptim/parallel-optim/coord"
	"github.com/qcoptim/parallel-optim/coord/trace"
	"github.com/sirupsen/logrus"
)

type phase int

const (
	phaseInit phase = iota
	phaseOptimise
)

func (p phase) String() string {
	if p == phaseInit {
		return "init"
	}
	return "optimise"
}

// pendingRound is everything one request phase produced. It is consumed by
// exactly one Init or Update call and then discarded.
type pendingRound struct {
	phase    phase
	ledger   *coord.Round
	matrix   coord.SharingMatrix
	requests []coord.EncodedRequest
}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	tokens coord.TokenSource
	trace  *trace.RoundTrace
	name   string
}

// WithTokenSource replaces the default UUID token source.
func WithTokenSource(src coord.TokenSource) Option {
	return func(o *options) { o.tokens = src }
}

// WithTrace records every generated point and delivery into rt.
func WithTrace(rt *trace.RoundTrace) Option {
	return func(o *options) { o.trace = rt }
}

// WithName labels the coordinator in log lines.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Coordinator owns N optimizer slots and runs them against one shared stream
// of batched evaluations. Rounds go: request phase (NextEvaluationRequests)
// → external execution → update phase (Update). A one-time init round
// (InitRequests → Init) precedes the first request phase.
//
// Thread-safety: NOT thread-safe. Distinct Coordinators share no state.
type Coordinator[O coord.Optimizer] struct {
	cfg         coord.Config
	mode        coord.SharingMode
	slots       []*Slot[O]
	matrix      coord.SharingMatrix
	rng         *coord.PartitionedRNG
	tokens      coord.TokenSource
	trace       *trace.RoundTrace
	name        string
	pending     *pendingRound
	initialised bool
	rounds      int
}

// New creates a Coordinator over optimizers, with costs[i] belonging to
// optimizers[i]. An unrecognized sharing mode fails before anything is built.
func New[O coord.Optimizer](cfg coord.Config, optimizers []O, costs []coord.CostModel, opts ...Option) (*Coordinator[O], error) {
	mode, err := coord.ParseSharingMode(cfg.SharingMode)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(optimizers) == 0 {
		return nil, fmt.Errorf("pool needs at least one optimizer")
	}
	if len(costs) != len(optimizers) {
		return nil, fmt.Errorf("got %d cost models for %d optimizers", len(costs), len(optimizers))
	}
	dim := costs[0].Dim()
	for i, c := range costs {
		if c.Dim() != dim {
			return nil, fmt.Errorf("cost model %d has dimension %d, cost model 0 has %d", i, c.Dim(), dim)
		}
	}
	matrix, err := coord.GenerateTopology(len(optimizers), mode)
	if err != nil {
		return nil, err
	}

	o := options{tokens: coord.UUIDTokens{}, name: "pool"}
	for _, opt := range opts {
		opt(&o)
	}

	slots := make([]*Slot[O], len(optimizers))
	for i := range optimizers {
		slots[i] = newSlot(i, optimizers[i], costs[i])
	}
	return &Coordinator[O]{
		cfg:    cfg,
		mode:   mode,
		slots:  slots,
		matrix: matrix,
		rng:    coord.NewPartitionedRNG(cfg.Seed),
		tokens: o.tokens,
		trace:  o.trace,
		name:   o.name,
	}, nil
}

// N returns the pool size.
func (c *Coordinator[O]) N() int { return len(c.slots) }

// Mode returns the sharing mode.
func (c *Coordinator[O]) Mode() coord.SharingMode { return c.mode }

// Matrix returns the static sharing matrix.
func (c *Coordinator[O]) Matrix() coord.SharingMatrix { return c.matrix }

// Slots returns the pool slots in index order.
func (c *Coordinator[O]) Slots() []*Slot[O] {
	out := make([]*Slot[O], len(c.slots))
	copy(out, c.slots)
	return out
}

// Initialised reports whether the init round has been delivered.
func (c *Coordinator[O]) Initialised() bool { return c.initialised }

// Rounds returns the number of completed update rounds.
func (c *Coordinator[O]) Rounds() int { return c.rounds }

// PendingLedger returns the ledger of the round awaiting results, or nil.
func (c *Coordinator[O]) PendingLedger() *coord.Round {
	if c.pending == nil {
		return nil
	}
	return c.pending.ledger
}

// PendingRequests returns the requests of the round awaiting results.
func (c *Coordinator[O]) PendingRequests() []coord.EncodedRequest {
	if c.pending == nil {
		return nil
	}
	out := make([]coord.EncodedRequest, len(c.pending.requests))
	copy(out, c.pending.requests)
	return out
}

// Best returns the best observation of every slot.
func (c *Coordinator[O]) Best() []coord.Observation {
	out := make([]coord.Observation, len(c.slots))
	for i, s := range c.slots {
		x, y, _ := s.Best()
		out[i] = coord.Observation{X: x, Y: y}
	}
	return out
}

func (c *Coordinator[O]) costModels() []coord.CostModel {
	out := make([]coord.CostModel, len(c.slots))
	for i, s := range c.slots {
		out[i] = s.cost
	}
	return out
}

// InitRequests draws the random init samples and returns their encoded
// requests. With ShareInit one batch is drawn by slot 0 and shared, otherwise
// every slot draws its own.
func (c *Coordinator[O]) InitRequests() ([]coord.EncodedRequest, error) {
	if c.initialised {
		return nil, fmt.Errorf("%s: init round already delivered", c.name)
	}
	perPoint, err := requestsPerPoint(c.slots[0].cost)
	if err != nil {
		return nil, err
	}
	samples, err := c.cfg.InitialSampleCount(perPoint)
	if err != nil {
		return nil, err
	}
	matrix, err := coord.InitTopology(len(c.slots), samples, c.cfg.ShareInit)
	if err != nil {
		return nil, err
	}

	generators := c.slots
	if c.cfg.ShareInit {
		generators = c.slots[:1]
	}
	rng := c.rng.ForSubsystem(coord.SubsystemInit)
	ledger := coord.NewRound(0)
	var reqs []coord.EncodedRequest
	for _, s := range generators {
		for k := 0; k < samples; k++ {
			x := coord.RandomPoint(rng, s.cost.Dim())
			encoded, err := c.record(ledger, s, coord.RequestKey{Requester: s.index, Point: k}, x, false)
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, encoded...)
		}
	}
	if err := c.checkLedger(ledger, matrix); err != nil {
		return nil, err
	}

	c.pending = &pendingRound{phase: phaseInit, ledger: ledger, matrix: matrix, requests: reqs}
	logrus.Debugf("%s: init round with %d samples (share_init=%v), %d requests",
		c.name, samples, c.cfg.ShareInit, len(reqs))
	return reqs, nil
}

// Init delivers the init round's observations to every slot and fits each
// model once, without proposing anything.
func (c *Coordinator[O]) Init(raw coord.RawResults) error {
	if c.pending == nil || c.pending.phase != phaseInit {
		return fmt.Errorf("%s: Init without InitRequests: %w", c.name, coord.ErrNoPendingRound)
	}
	if err := c.deliver(raw); err != nil {
		return err
	}
	c.initialised = true
	return nil
}

// NextEvaluationRequests starts a new round. With points == nil every slot
// proposes its own next point; otherwise points must hold exactly one point
// per slot. Padding points required by the sharing mode are synthesized and
// all points are encoded. Requests of an earlier round still awaiting
// results are discarded.
func (c *Coordinator[O]) NextEvaluationRequests(points [][]float64) ([]coord.EncodedRequest, error) {
	if !c.initialised {
		if c.pending != nil && c.pending.phase == phaseInit {
			return nil, fmt.Errorf("%s: init round still awaiting results: %w", c.name, coord.ErrNoPendingRound)
		}
		logrus.Warnf("%s: requesting points before any init data was delivered", c.name)
	}
	if points != nil && len(points) != len(c.slots) {
		return nil, fmt.Errorf("%s: got %d external points for %d slots", c.name, len(points), len(c.slots))
	}
	if c.pending != nil {
		logrus.Warnf("%s: discarding round %d with %d unrouted requests",
			c.name, c.pending.ledger.Seq(), len(c.pending.requests))
		c.pending = nil
	}

	ledger := coord.NewRound(c.rounds + 1)
	var reqs []coord.EncodedRequest
	for _, s := range c.slots {
		var x []float64
		if points != nil {
			x = points[s.index]
		} else {
			var err error
			if x, err = s.opt.Propose(); err != nil {
				return nil, fmt.Errorf("%s: slot %d propose: %w", c.name, s.index, err)
			}
		}
		if len(x) != s.cost.Dim() {
			return nil, fmt.Errorf("%s: slot %d point has %d coordinates, want %d",
				c.name, s.index, len(x), s.cost.Dim())
		}
		encoded, err := c.record(ledger, s, coord.RequestKey{Requester: s.index, Point: s.index}, x, false)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, encoded...)
	}

	padding, err := c.padding(ledger)
	if err != nil {
		return nil, err
	}
	reqs = append(reqs, padding...)

	if err := c.checkLedger(ledger, c.matrix); err != nil {
		return nil, err
	}
	c.pending = &pendingRound{phase: phaseOptimise, ledger: ledger, matrix: c.matrix, requests: reqs}
	logrus.Debugf("%s: round %d generated %d points, %d requests", c.name, ledger.Seq(), ledger.Len(), len(reqs))
	return reqs, nil
}

// padding synthesizes and records one point per padding entry.
func (c *Coordinator[O]) padding(ledger *coord.Round) ([]coord.EncodedRequest, error) {
	var reqs []coord.EncodedRequest
	for _, e := range c.matrix.PaddingEntries() {
		own, err := ledger.Lookup(coord.RequestKey{Requester: e.Consumer, Point: e.Consumer})
		if err != nil {
			return nil, err
		}
		other, err := ledger.Lookup(coord.RequestKey{Requester: e.Point, Point: e.Point})
		if err != nil {
			return nil, err
		}
		rng := c.rng.ForSubsystem(coord.SubsystemPadding(e.Consumer))
		x := coord.PaddingPoint(rng, own.X, other.X)
		encoded, err := c.record(ledger, c.slots[e.Consumer], e.Key(), x, true)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, encoded...)
	}
	return reqs, nil
}

// Update routes the raw results of the pending round through the sharing
// matrix, delivers every slot its observations and refits each slot once.
func (c *Coordinator[O]) Update(raw coord.RawResults) error {
	if c.pending == nil || c.pending.phase != phaseOptimise {
		return fmt.Errorf("%s: Update without NextEvaluationRequests: %w", c.name, coord.ErrNoPendingRound)
	}
	if err := c.deliver(raw); err != nil {
		return err
	}
	c.rounds++
	return nil
}

// deliver resolves the whole pending round before touching any slot, so a
// routing failure leaves every optimizer unchanged. Every slot observes
// before any slot refits; an Observe error stops the round with earlier
// slots already holding their observations and no slot refitted. The
// round is consumed either way.
func (c *Coordinator[O]) deliver(raw coord.RawResults) error {
	p := c.pending
	c.pending = nil

	obs, err := coord.ResolveAll(p.matrix, p.ledger, c.costModels(), raw)
	if err != nil {
		if errors.Is(err, coord.ErrUnknownRequest) {
			logrus.Errorf("%s: %s round %d desynchronized from %s topology: %v",
				c.name, p.phase, p.ledger.Seq(), p.matrix.Mode(), err)
		}
		return err
	}
	for i, s := range c.slots {
		c.recordDeliveries(p, i, obs[i])
		if err := s.observe(obs[i]); err != nil {
			return fmt.Errorf("%s: slot %d %s update: %w", c.name, i, p.phase, err)
		}
	}
	for i, s := range c.slots {
		if err := s.refit(); err != nil {
			return fmt.Errorf("%s: slot %d %s refit: %w", c.name, i, p.phase, err)
		}
	}
	logrus.Debugf("%s: %s round %d delivered to %d slots", c.name, p.phase, p.ledger.Seq(), len(c.slots))
	return nil
}

// Run drives the init round followed by cfg.RoundSamples optimisation
// rounds against exec. Executor errors are returned unchanged.
func (c *Coordinator[O]) Run(ctx context.Context, exec coord.Executor) error {
	if !c.initialised {
		reqs, err := c.InitRequests()
		if err != nil {
			return err
		}
		raw, err := coord.ExecuteBatch(ctx, exec, reqs)
		if err != nil {
			return err
		}
		if err := c.Init(raw); err != nil {
			return err
		}
	}
	for r := 0; r < c.cfg.RoundSamples; r++ {
		reqs, err := c.NextEvaluationRequests(nil)
		if err != nil {
			return err
		}
		raw, err := coord.ExecuteBatch(ctx, exec, reqs)
		if err != nil {
			return err
		}
		if err := c.Update(raw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator[O]) record(ledger *coord.Round, s *Slot[O], key coord.RequestKey, x []float64, padding bool) ([]coord.EncodedRequest, error) {
	id := c.tokens.Next()
	if err := ledger.Record(key, id, x); err != nil {
		return nil, err
	}
	reqs, err := s.cost.Encode(x, id)
	if err != nil {
		return nil, fmt.Errorf("%s: slot %d encode: %w", c.name, s.index, err)
	}
	c.trace.RecordRequest(trace.RequestRecord{
		Round: ledger.Seq(), Requester: key.Requester, Point: key.Point,
		Token: string(id), Padding: padding, Requests: len(reqs),
	})
	return reqs, nil
}

func (c *Coordinator[O]) recordDeliveries(p *pendingRound, consumer int, obs []coord.Observation) {
	for k, e := range p.matrix.ForConsumer(consumer) {
		rec, _ := p.ledger.Lookup(e.Key())
		c.trace.RecordDelivery(trace.DeliveryRecord{
			Round: p.ledger.Seq(), Consumer: consumer, Generator: e.Generator, Point: e.Point,
			Token: string(rec.ID), Value: obs[k].Y,
		})
	}
}

func (c *Coordinator[O]) checkLedger(ledger *coord.Round, matrix coord.SharingMatrix) error {
	if ledger.Len() != matrix.ExpectedPoints() {
		err := &coord.ConsistencyError{What: "points generated", Mode: c.mode, Instance: -1,
			Expected: matrix.ExpectedPoints(), Actual: ledger.Len()}
		logrus.Errorf("%s: %v", c.name, err)
		return err
	}
	return nil
}

// requestsPerPoint measures how many requests cost encodes a single point into.
func requestsPerPoint(cost coord.CostModel) (int, error) {
	reqs, err := cost.Encode(make([]float64, cost.Dim()), "probe")
	if err != nil {
		return 0, fmt.Errorf("probing requests per point: %w", err)
	}
	return len(reqs), nil
}
