package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boshu2/regtest/internal/config"
	"github.com/boshu2/regtest/internal/review"
	"github.com/boshu2/regtest/internal/runner"
)

// Actions accepted in the a parameter.
const (
	ActionInit      = "init"
	ActionLoad      = "load"
	ActionRun       = "run"
	ActionAcceptND  = "accept-nd"
	ActionAccept    = "accept"
	ActionGoldAdd   = "gold-add"
	ActionGoldRepl  = "gold-replace"
	ActionGoldSet   = "gold-set"
	ActionInspect   = "inspect"
	idSeparator     = ";"
	corpusSeparator = ","
)

// InitResponse describes the server and the selected test.
type InitResponse struct {
	Nonce    string               `json:"nonce"`
	Test     string               `json:"test"`
	Tests    []review.TestSummary `json:"tests"`
	Stages   []string             `json:"stages"`
	Corpora  []string             `json:"corpora"`
	PageSize int                  `json:"pagesize"`
	Gold     bool                 `json:"gold"`
}

// RunResponse reports a run.
type RunResponse struct {
	Good   bool           `json:"good"`
	Report *runner.Report `json:"report"`
}

// IDsResponse lists the entries a mutation touched.
type IDsResponse struct {
	Corpus string   `json:"c,omitempty"`
	IDs    []string `json:"hs"`
}

func (s *Server) dispatch(ctx context.Context, action string, p params) (any, error) {
	test := p.get("t")
	corpora := config.SplitFilters(p.list("c", corpusSeparator))

	switch action {
	case ActionInit, "init-regtest", "init-inspect":
		return s.init(ctx, test)

	case ActionLoad:
		page, err := p.int("p")
		if err != nil {
			return nil, err
		}
		size, err := p.int("z")
		if err != nil {
			return nil, err
		}
		return s.svc.Load(ctx, review.LoadRequest{
			Test:     test,
			Corpora:  corpora,
			Gold:     p.get("g"),
			Page:     page,
			PageSize: size,
		})

	case ActionRun:
		report, err := s.svc.Run(ctx, review.RunRequest{Test: test, Corpora: corpora})
		if err != nil {
			return nil, err
		}
		return &RunResponse{Good: len(report.Failures) == 0 && report.Shortfall() == 0, Report: report}, nil

	case ActionAcceptND:
		c := p.get("c")
		ids, err := s.svc.AcceptNoDiff(ctx, test, c)
		if err != nil {
			return nil, err
		}
		return &IDsResponse{Corpus: c, IDs: nonNil(ids)}, nil

	case ActionAccept:
		ids, err := s.svc.Accept(ctx, review.AcceptRequest{
			Test:    test,
			IDs:     p.list("hs", idSeparator),
			Stage:   p.get("s"),
			Corpora: corpora,
		})
		if err != nil {
			return nil, err
		}
		return &IDsResponse{IDs: nonNil(ids)}, nil

	case ActionGoldAdd, ActionGoldRepl, ActionGoldSet:
		req := review.GoldRequest{
			Test:    test,
			Op:      review.GoldOp(action[len("gold-"):]),
			IDs:     p.list("hs", idSeparator),
			Corpora: corpora,
		}
		if req.Op == review.GoldSet {
			if err := json.Unmarshal([]byte(p.get("gs")), &req.Candidates); err != nil {
				return nil, fmt.Errorf("%w: parameter gs must be a JSON list of strings: %v", review.ErrInvalidParam, err)
			}
		}
		ids, err := s.svc.Gold(ctx, req)
		if err != nil {
			return nil, err
		}
		return &IDsResponse{IDs: nonNil(ids)}, nil

	case ActionInspect:
		return s.svc.Inspect(ctx, test, p.get("txt"))
	}
	return nil, fmt.Errorf("%w %q", ErrAction, action)
}

func (s *Server) init(ctx context.Context, test string) (*InitResponse, error) {
	info, err := s.svc.Info(ctx, test)
	if err != nil {
		return nil, err
	}
	corpora := make([]string, len(info.Corpora))
	for i, c := range info.Corpora {
		corpora[i] = c.Name
	}
	return &InitResponse{
		Nonce:    s.nonce,
		Test:     info.Name,
		Tests:    s.svc.Tests(),
		Stages:   info.StageNames(),
		Corpora:  corpora,
		PageSize: s.svc.Settings().PageSize,
		Gold:     info.Gold,
	}, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
