package indexer

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

type Service struct {
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
	server     *http.Server
}

// NewService serves the indexed tables and, when gatherer is not nil, its metrics.
func NewService(listenAddr string, indexer *ChainIndexer, gatherer prometheus.Gatherer) *Service {
	r := gin.Default()
	s := &Service{
		engine:     r,
		indexer:    indexer,
		listenAddr: listenAddr,
	}
	s.server = &http.Server{
		Addr:    listenAddr,
		Handler: r,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getVotes", s.handleGetVotes)
	s.engine.POST("/getPayments", s.handleGetPayments)
	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop. It returns nil at once when Stop already ran.
func (s *Service) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func pageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

type ProposalInfo struct {
	Proposal Proposal       `json:"proposal"`
	Votes    []ProposalVote `json:"votes"`
}

type GetProposalsReq struct {
	ProposalId      *uint64 `json:"proposalId"`
	ProposerAddress string  `json:"proposer"`
	Page            int     `json:"page"`
	PageSize        int     `json:"pageSize"`
}

type GetProposalResponse struct {
	Proposals []ProposalInfo `json:"proposals"`
	Total     uint64         `json:"total"`
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var response GetProposalResponse
	response.Proposals = make([]ProposalInfo, 0)
	var requestData GetProposalsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if requestData.ProposalId != nil {
		proposal, err := s.indexer.getProposalByIndex(*requestData.ProposalId)
		if gorm.IsRecordNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "proposal not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		info, err := s.proposalInfo(*proposal)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, info)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	proposals, total, err := s.indexer.getProposals(requestData.ProposerAddress, requestData.Page, pageSize(requestData.PageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Total = total
	for _, proposal := range proposals {
		info, err := s.proposalInfo(proposal)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, info)
	}
	c.JSON(http.StatusOK, response)
}

func (s *Service) proposalInfo(proposal Proposal) (ProposalInfo, error) {
	votes, err := s.indexer.getVotesByProposal(proposal.ProposalIndex, 0, MaxPageSize)
	if err != nil {
		return ProposalInfo{}, err
	}
	return ProposalInfo{
		Proposal: proposal,
		Votes:    votes,
	}, nil
}

type GetVotesReq struct {
	ProposalId   *uint64 `json:"proposalId"`
	VoterAddress string  `json:"voter"`
	Page         int     `json:"page"`
	PageSize     int     `json:"pageSize"`
}

type GetVotesResponse struct {
	Votes []ProposalVote `json:"votes"`
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var requestData GetVotesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var votes []ProposalVote
	var err error
	switch {
	case requestData.ProposalId != nil:
		votes, err = s.indexer.getVotesByProposal(*requestData.ProposalId, requestData.Page, pageSize(requestData.PageSize))
	case requestData.VoterAddress != "":
		votes, err = s.indexer.getVotesByVoter(requestData.VoterAddress, requestData.Page, pageSize(requestData.PageSize))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposalId or voter is required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, GetVotesResponse{Votes: votes})
}

type GetPaymentsReq struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

type GetPaymentsResponse struct {
	Payments []Payment `json:"payments"`
	Total    uint64    `json:"total"`
}

func (s *Service) handleGetPayments(c *gin.Context) {
	var requestData GetPaymentsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payments, total, err := s.indexer.getPayments(requestData.Page, pageSize(requestData.PageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, GetPaymentsResponse{Payments: payments, Total: total})
}
