package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bazario/pushgate/logger"
	"github.com/bazario/pushgate/service/groups"
	"github.com/bazario/pushgate/service/storage"
	"github.com/bazario/pushgate/tools/errs"
	"github.com/bazario/pushgate/tools/ids"
)

type endpointKind int

const (
	kindChat endpointKind = iota
	kindNotifications
)

// Config wires the gateway's collaborators. Registry, Resolver, Oracle and
// Messages are required; Presence and Archive are optional extras.
type Config struct {
	GatewayID string
	Resolver  Resolver
	Registry  *groups.Registry
	Oracle    MembershipOracle
	Messages  MessageStore
	Presence  *storage.Presence
	Archive   Archiver
	Events    EventSink

	// StepTimeout bounds each collaborator call during frame processing.
	StepTimeout time.Duration
}

type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 5 * time.Second
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleChatWS serves ws://.../ws/chat?token=... — the chat socket joins the
// identity's chat group and accepts chat_message frames.
func (s *Server) HandleChatWS(c *gin.Context) {
	s.serve(c.Writer, c.Request, kindChat)
}

// HandleNotificationsWS serves the notification socket; it only receives.
func (s *Server) HandleNotificationsWS(c *gin.Context) {
	s.serve(c.Writer, c.Request, kindNotifications)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, kind endpointKind) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// not a websocket request / handshake failed
		logger.Debugf("[ws] upgrade err: %v", err)
		return
	}

	conn := newConn(ids.GenerateString(), sock)

	// CONNECTING: resolve identity before anything else. Anonymous sockets
	// never reach a group.
	user, err := s.cfg.Resolver.Resolve(TokenFromRequest(r))
	if err != nil {
		logger.Infof("[ws] auth rejected conn=%s: %v", conn.id, err)
		conn.close(CloseAuthRejected, errs.AsCodeError(err).Msg)
		return
	}
	conn.user = user
	conn.state.Store(StateAuthenticated)

	switch kind {
	case kindChat:
		conn.group = groups.ChatGroup(user)
	case kindNotifications:
		conn.group = groups.NotificationGroup(user)
	}

	if err := s.cfg.Registry.Join(conn.group, conn); err != nil {
		logger.Errorf("[ws] join %s failed conn=%s: %v", conn.group, conn.id, err)
		conn.close(CloseInternal, "internal error")
		return
	}
	// Leave is guaranteed on every exit path, including a panicking read
	// loop; it is idempotent so racing with shutdown is harmless.
	defer s.cfg.Registry.Leave(conn.group, conn)
	defer conn.close(CloseNormal, "")

	if s.cfg.Presence != nil && kind == kindChat {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StepTimeout)
		if perr := s.cfg.Presence.Online(ctx, user, s.cfg.GatewayID); perr != nil {
			logger.Warnf("[ws] presence online user=%s: %v", user, perr)
		}
		cancel()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StepTimeout)
			defer cancel()
			if perr := s.cfg.Presence.Offline(ctx, user); perr != nil {
				logger.Warnf("[ws] presence offline user=%s: %v", user, perr)
			}
		}()
	}

	go conn.writePump()
	conn.state.Store(StateActive)
	logger.Infof("[ws] active conn=%s user=%s group=%s", conn.id, user, conn.group)

	s.readLoop(conn, kind)
}

// readLoop processes frames strictly in arrival order for this connection.
// It returns on any transport-level failure; per-frame errors never end it.
func (s *Server) readLoop(c *Conn, kind endpointKind) {
	c.sock.SetReadLimit(1 << 20)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
		if s.cfg.Presence != nil && kind == kindChat {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StepTimeout)
			defer cancel()
			_ = s.cfg.Presence.Touch(ctx, c.user)
		}
		return nil
	})

	for {
		mt, data, err := c.sock.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived):
				logger.Infof("[ws] peer closed conn=%s user=%s", c.id, c.user)
			default:
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					logger.Infof("[ws] read timeout conn=%s user=%s", c.id, c.user)
				} else {
					logger.Infof("[ws] read err conn=%s user=%s err=%v", c.id, c.user, err)
				}
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.handleFrame(c, kind, data)
	}
}

// handleFrame converts every failure into an error event to the sender only.
// Unclassified panics count as internal errors; only transport failures may
// end the connection.
func (s *Server) handleFrame(c *Conn, kind endpointKind, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("[ws] frame panic conn=%s user=%s: %v", c.id, c.user, rec)
			c.Deliver(BuildErrorEvent(errs.ErrInternal))
		}
	}()

	f, err := ParseFrame(data)
	if err != nil {
		c.Deliver(BuildErrorEvent(errs.ErrMalformedFrame))
		return
	}

	switch f.Type {
	case FramePing:
		c.Deliver(BuildPong())
	case FrameChatMessage:
		if kind != kindChat {
			// the notification socket is push-only
			logger.Debugf("[ws] chat_message on notification socket conn=%s", c.id)
			return
		}
		s.handleChatMessage(c, f)
	default:
		c.Deliver(BuildErrorEvent(errs.ErrMalformedFrame.WithDetail("unknown frame type " + f.Type)))
	}
}

// handleChatMessage runs the validate -> membership -> persist -> fan-out
// pipeline. Steps before persistence reject with no side effects; after a
// successful persist, delivery problems are logged only (the message exists,
// the sender's request already succeeded).
func (s *Server) handleChatMessage(c *Conn, f *InboundFrame) {
	convID := strings.TrimSpace(string(f.ConversationID))
	content := strings.TrimSpace(f.Content)
	if convID == "" || content == "" {
		c.Deliver(BuildErrorEvent(errs.ErrValidation.WithDetail("conversation_id and content are required")))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StepTimeout)
	ok, err := s.cfg.Oracle.IsMember(ctx, c.user, convID)
	cancel()
	if err != nil {
		logger.Errorf("[ws] membership check conv=%s user=%s: %v", convID, c.user, err)
		c.Deliver(BuildErrorEvent(errs.ErrInternal))
		return
	}
	if !ok {
		c.Deliver(BuildErrorEvent(errs.ErrForbidden.WithDetail("not a conversation member")))
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), s.cfg.StepTimeout)
	msg, err := s.cfg.Messages.CreateMessage(ctx, convID, c.user, content)
	cancel()
	if err != nil {
		// the store re-checks membership at write time; a revocation between
		// the oracle check and here surfaces as ErrNotMember
		c.Deliver(BuildErrorEvent(classifyPersistErr(err)))
		logger.Errorf("[ws] persist conv=%s user=%s: %v", convID, c.user, err)
		return
	}

	ctx, cancel = context.WithTimeout(context.Background(), s.cfg.StepTimeout)
	members, err := s.cfg.Messages.ListMembers(ctx, convID)
	cancel()
	if err != nil {
		// persisted but undeliverable: the documented degraded mode
		logger.Warnf("[ws] list members conv=%s after persist: %v", convID, err)
		return
	}

	// a duplicate participant row must not double-deliver or double-notify
	members = dedupe(members)

	if s.cfg.Events != nil {
		s.cfg.Events.MessageCreated(convID, c.user, members)
	}

	payload := BuildChatMessageEvent(msg)
	ctx, cancel = context.WithTimeout(context.Background(), s.cfg.StepTimeout)
	defer cancel()
	for _, member := range members {
		// sender included: their other devices need the echo
		if perr := s.cfg.Registry.Publish(ctx, groups.ChatGroup(member), payload); perr != nil {
			logger.Warnf("[ws] fanout conv=%s to=%s: %v", convID, member, perr)
		}
	}

	if s.cfg.Archive != nil {
		s.cfg.Archive.Archive(convID, msg)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func classifyPersistErr(err error) *errs.CodeError {
	switch {
	case errors.Is(err, ErrNotMember):
		return errs.ErrForbidden.WithDetail("not a conversation member")
	case errors.Is(err, ErrNotFound):
		return errs.ErrValidation.WithDetail("conversation not found")
	default:
		return errs.ErrInternal
	}
}
