package indexer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calehh/dao-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/prometheus/client_golang/prometheus"
)

// BlockSource is the part of the CometBFT RPC client the indexer reads from.
type BlockSource interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error)
}

func NewHTTPSource(url string) (*comethttp.HTTP, error) {
	return comethttp.New(url, "/websocket")
}

type eventHandler func(db *gorm.DB, event abci.Event, height int64) error

// ChainIndexer copies the governance events of committed blocks into sqlite.
type ChainIndexer struct {
	logger        cmtlog.Logger
	db            *gorm.DB
	src           BlockSource
	interval      time.Duration
	height        atomic.Int64
	eventHandlers map[string]eventHandler
	wg            sync.WaitGroup
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, src BlockSource, interval time.Duration) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath)
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Height{}, &Proposal{}, &ProposalVote{}, &Payment{}, &Transfer{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	h := Height{Id: 1}
	if err = db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		db.Close()
		return nil, err
	}

	c := &ChainIndexer{
		logger:   logger.With("module", "indexer"),
		db:       db,
		src:      src,
		interval: interval,
	}
	c.height.Store(int64(h.Height + 1))
	c.eventHandlers = map[string]eventHandler{
		types.EventNewProposalType: c.handleEventNewProposal,
		types.EventVoteType:        c.handleEventVote,
		types.EventPaymentMadeType: c.handleEventPaymentMade,
		types.EventTransferType:    c.handleEventTransfer,
	}
	return c, nil
}

// Close waits for the loop started by Start to exit, so its ctx must be cancelled first.
func (c *ChainIndexer) Close() error {
	c.wg.Wait()
	return c.db.Close()
}

// Height is the next block height to index.
func (c *ChainIndexer) Height() int64 {
	return c.height.Load()
}

// Register exposes the indexed height as a gauge.
func (c *ChainIndexer) Register(reg prometheus.Registerer) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "dao",
		Subsystem: "indexer",
		Name:      "height",
		Help:      "Last block height copied into the indexer database.",
	}, func() float64 {
		return float64(c.height.Load() - 1)
	}))
}

// Start polls the node in the background until ctx is done.
func (c *ChainIndexer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

func (c *ChainIndexer) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				c.logger.Error("indexer sync fail", "height", c.Height(), "err", err)
			}
		}
	}
}

// Sync indexes every block up to the latest one the node reports.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	status, err := c.src.Status(ctx)
	if err != nil {
		return err
	}
	for c.Height() <= status.SyncInfo.LatestBlockHeight {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = c.IndexBlock(ctx, c.Height()); err != nil {
			return err
		}
	}
	return nil
}

// IndexBlock stores the events of the successful txs of block height. All rows of a
// block are written in one transaction together with the new height.
func (c *ChainIndexer) IndexBlock(ctx context.Context, height int64) error {
	results, err := c.src.BlockResults(ctx, &height)
	if err != nil {
		return err
	}
	tx := c.db.Begin()
	if err = tx.Error; err != nil {
		return err
	}
	for _, res := range results.TxsResults {
		if res.Code != abci.CodeTypeOK {
			continue
		}
		for _, event := range res.Events {
			h, ok := c.eventHandlers[event.Type]
			if !ok {
				continue
			}
			if err = h(tx, event, height); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	if err = tx.Save(&Height{Id: 1, Height: uint64(height)}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err = tx.Commit().Error; err != nil {
		return err
	}
	c.height.Store(height + 1)
	c.logger.Debug("block indexed", "height", height, "txs", len(results.TxsResults))
	return nil
}

var ErrDecodeEvent = errors.New("decode event fail")

func (c *ChainIndexer) handleEventNewProposal(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventNewProposal(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return ErrDecodeEvent
	}
	proposal := Proposal{
		ProposalIndex:     ev.Proposal,
		ProposerAddress:   ev.Proposer,
		Amount:            ev.Amount,
		Description:       ev.Description,
		NewHeight:         uint64(height),
		DeadlineTimestamp: ev.Deadline.Unix(),
	}
	return db.Create(&proposal).Error
}

func (c *ChainIndexer) handleEventVote(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventVote(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return ErrDecodeEvent
	}
	vote := ProposalVote{
		Proposal:     ev.Proposal,
		VoterAddress: ev.Voter,
		Support:      ev.Support,
		Height:       uint64(height),
	}
	if err := db.Create(&vote).Error; err != nil {
		return err
	}
	column := "votes_against"
	if ev.Support {
		column = "votes_for"
	}
	return db.Model(&Proposal{}).Where("proposal_index = ?", ev.Proposal).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
}

func (c *ChainIndexer) handleEventPaymentMade(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventPaymentMade(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return ErrDecodeEvent
	}
	payment := Payment{
		Proposal:        ev.Proposal,
		ProposerAddress: ev.Proposer,
		Amount:          ev.Amount,
		Height:          uint64(height),
	}
	if err := db.Create(&payment).Error; err != nil {
		return err
	}
	return db.Model(&Proposal{}).Where("proposal_index = ?", ev.Proposal).
		UpdateColumns(map[string]interface{}{"paid": true, "paid_height": uint64(height)}).Error
}

func (c *ChainIndexer) handleEventTransfer(db *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventTransfer(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return ErrDecodeEvent
	}
	transfer := Transfer{
		FromAddress: ev.From,
		ToAddress:   ev.To,
		Amount:      ev.Amount,
		Height:      uint64(height),
	}
	return db.Create(&transfer).Error
}

func (c *ChainIndexer) getProposals(proposer string, page int, pageSize int) ([]Proposal, uint64, error) {
	proposals := []Proposal{}
	q := c.db.Model(&Proposal{})
	if proposer != "" {
		q = q.Where("proposer_address = ?", proposer)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("proposal_index desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalByIndex(idx uint64) (*Proposal, error) {
	var proposal Proposal
	err := c.db.Where("proposal_index = ?", idx).First(&proposal).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (c *ChainIndexer) getVotesByProposal(proposal uint64, page int, pageSize int) ([]ProposalVote, error) {
	votes := []ProposalVote{}
	err := c.db.Where("proposal = ?", proposal).Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (c *ChainIndexer) getVotesByVoter(voter string, page int, pageSize int) ([]ProposalVote, error) {
	votes := []ProposalVote{}
	err := c.db.Where("voter_address = ?", voter).Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (c *ChainIndexer) getPayments(page int, pageSize int) ([]Payment, uint64, error) {
	payments := []Payment{}
	var total uint64
	if err := c.db.Model(&Payment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := c.db.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
