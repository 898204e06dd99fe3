package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"gantry/internal/account"
	"gantry/internal/daemon"
	"gantry/internal/logging"
	"gantry/internal/pipeline"
	"gantry/internal/store"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. onStop is
// invoked when a client requests daemon shutdown.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, onStop func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx, onStop: onStop}
	if err := rpcServer.RegisterName("Gantry", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("remove socket", logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
	onStop func()
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func convertAccount(acct *account.Account) AccountRecord {
	return AccountRecord{
		Email:         acct.Email,
		Password:      acct.Password,
		RecoveryEmail: acct.RecoveryEmail,
		SecretKey:     acct.SecretKey,
		Status:        string(acct.Status),
		Message:       acct.Message,
		BrowserID:     acct.BrowserID,
		CreatedAt:     acct.CreatedAt,
		UpdatedAt:     acct.UpdatedAt,
	}
}

func convertStats(stats store.Stats) StatsResponse {
	resp := StatsResponse{
		Total:       stats.Total,
		ByStatus:    make(map[string]int, len(stats.ByStatus)),
		WithBrowser: stats.WithBrowser,
	}
	for status, count := range stats.ByStatus {
		resp.ByStatus[string(status)] = count
	}
	return resp
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.Workers = status.Workers
	resp.PoolCapacity = status.PoolCapacity
	resp.PoolInUse = status.PoolInUse
	resp.PoolIdle = status.PoolIdle
	resp.QueueDepth = status.QueueDepth
	resp.AccountStats = convertStats(status.AccountStats)
	resp.InFlight = make([]FlightRecord, 0, len(status.InFlight))
	for _, item := range status.InFlight {
		resp.InFlight = append(resp.InFlight, FlightRecord{
			ID:         item.ID,
			Email:      item.Email,
			Stage:      string(item.Stage),
			Mode:       string(item.Mode),
			EnqueuedAt: item.EnqueuedAt,
		})
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Info("daemon stop requested via IPC")
	resp.Stopped = true
	if s.onStop != nil {
		go s.onStop()
	}
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	mode, ok := pipeline.ParseMode(req.Mode)
	if !ok {
		return fmt.Errorf("unknown mode %q", req.Mode)
	}
	stage, err := s.daemon.Submit(s.ctx, req.Email, mode, req.Force)
	if err != nil {
		return err
	}
	resp.Stage = string(stage)
	return nil
}

func (s *service) SubmitAll(req SubmitAllRequest, resp *SubmitAllResponse) error {
	mode, ok := pipeline.ParseMode(req.Mode)
	if !ok {
		return fmt.Errorf("unknown mode %q", req.Mode)
	}
	submitted, skipped, err := s.daemon.SubmitAll(s.ctx, mode)
	if err != nil {
		return err
	}
	resp.Submitted = submitted
	resp.Skipped = skipped
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	if err := s.daemon.Cancel(req.Email); err != nil {
		return err
	}
	resp.Cancelled = true
	return nil
}

func (s *service) AccountList(req AccountListRequest, resp *AccountListResponse) error {
	filter := store.ListFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Status != "" {
		status, ok := account.ParseStatus(req.Status)
		if !ok {
			return fmt.Errorf("unknown status %q", req.Status)
		}
		filter.Status = status
	}
	accounts, total, err := s.daemon.ListAccounts(s.ctx, filter)
	if err != nil {
		return err
	}
	resp.Total = total
	resp.Accounts = make([]AccountRecord, 0, len(accounts))
	for _, acct := range accounts {
		resp.Accounts = append(resp.Accounts, convertAccount(acct))
	}
	return nil
}

func (s *service) AccountShow(req AccountShowRequest, resp *AccountShowResponse) error {
	acct, err := s.daemon.GetAccount(s.ctx, req.Email)
	if err != nil {
		return err
	}
	resp.Account = convertAccount(acct)
	return nil
}

func (s *service) AccountAdd(req AccountAddRequest, resp *AccountAddResponse) error {
	acct, err := s.daemon.UpsertAccount(s.ctx, account.Account{
		Email:         req.Email,
		Password:      req.Password,
		RecoveryEmail: req.RecoveryEmail,
		SecretKey:     req.SecretKey,
	})
	if err != nil {
		return err
	}
	resp.Account = convertAccount(acct)
	return nil
}

func (s *service) AccountRemove(req AccountRemoveRequest, resp *AccountRemoveResponse) error {
	if err := s.daemon.RemoveAccount(s.ctx, req.Email); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) Import(req ImportRequest, resp *ImportResponse) error {
	result, err := s.daemon.ImportAccounts(s.ctx, req.Content, req.Separator)
	if err != nil {
		return err
	}
	resp.Imported = result.Imported
	resp.Errors = result.Errors
	return nil
}

func (s *service) Export(req ExportRequest, resp *ExportResponse) error {
	var status account.Status
	if req.Status != "" {
		parsed, ok := account.ParseStatus(req.Status)
		if !ok {
			return fmt.Errorf("unknown status %q", req.Status)
		}
		status = parsed
	}
	content, count, err := s.daemon.ExportAccounts(s.ctx, status)
	if err != nil {
		return err
	}
	resp.Content = content
	resp.Count = count
	return nil
}

func (s *service) Stats(_ StatsRequest, resp *StatsResponse) error {
	stats, err := s.daemon.AccountStats(s.ctx)
	if err != nil {
		return err
	}
	*resp = convertStats(stats)
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	ctx := s.ctx
	if req.Wait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eventWaitTimeout)
		defer cancel()
	}
	evts, next, err := s.daemon.Events().Fetch(ctx, req.Since, req.Limit, req.Wait)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Next = next
	resp.Events = make([]EventRecord, 0, len(evts))
	for _, evt := range evts {
		resp.Events = append(resp.Events, EventRecord{
			Sequence:  evt.Sequence,
			Timestamp: evt.Timestamp,
			Type:      string(evt.Type),
			Email:     evt.Email,
			Stage:     evt.Stage,
			Status:    evt.Status,
			Message:   evt.Message,
			Attempt:   evt.Attempt,
		})
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		return err
	}
	resp.Sent = true
	return nil
}
