package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/pongserver/engine"
	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/models"
	"github.com/wfunc/pongserver/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// PartyService exposes the party control surface over net/rpc, for
// operator tooling and sibling services. Methods follow the net/rpc
// signature: exported method, exported args, pointer reply, error return.
type PartyService struct {
	engine  *engine.Engine
	matches *services.MatchService
}

func NewPartyService(e *engine.Engine, matches *services.MatchService) *PartyService {
	return &PartyService{engine: e, matches: matches}
}

type JoinArgs struct {
	Mode     models.PartyMode
	Identity string
}

type JoinReply struct {
	PartyID  uint
	Rejoined bool
}

func (ps *PartyService) Join(args *JoinArgs, reply *JoinReply) error {
	res, err := ps.engine.Join(args.Mode, args.Identity)
	if err != nil {
		return err
	}
	reply.PartyID = res.PartyID
	reply.Rejoined = res.Rejoined
	return nil
}

type StartArgs struct {
	Mode     models.PartyMode
	Identity string
}

type StartReply struct {
	PartyID uint
	Team1   int
	Team2   int
	Players []string
}

func (ps *PartyService) Start(args *StartArgs, reply *StartReply) error {
	res, err := ps.engine.StartParty(args.Mode, args.Identity)
	if err != nil {
		return err
	}
	reply.PartyID = res.PartyID
	reply.Team1 = res.Team1
	reply.Team2 = res.Team2
	reply.Players = res.Players
	return nil
}

type LeaveArgs struct {
	Identity string
}

type LeaveReply struct {
	PartyID uint
}

func (ps *PartyService) Leave(args *LeaveArgs, reply *LeaveReply) error {
	res, err := ps.engine.Leave(args.Identity)
	if err != nil {
		return err
	}
	reply.PartyID = res.PartyID
	return nil
}

type ResumeArgs struct {
	Identity string
}

type ResumeReply struct {
	PartyID uint
	Mode    models.PartyMode
	Team    int
}

func (ps *PartyService) Resume(args *ResumeArgs, reply *ResumeReply) error {
	res, err := ps.engine.Resume(args.Identity)
	if err != nil {
		return err
	}
	reply.PartyID = res.PartyID
	reply.Mode = res.Mode
	reply.Team = res.Team
	return nil
}

type StatsArgs struct {
	Identity string
}

type StatsReply struct {
	Stats models.MatchStats
}

func (ps *PartyService) Stats(args *StatsArgs, reply *StatsReply) error {
	stats, err := ps.matches.StatsFor(args.Identity)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}
