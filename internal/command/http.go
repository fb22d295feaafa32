package command

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
)

// event OneBot v11 HTTP 上报的消息事件，只取需要的字段。
type event struct {
	PostType    string `json:"post_type"`
	MessageType string `json:"message_type"`
	UserID      int64  `json:"user_id"`
	GroupID     int64  `json:"group_id"`
	SelfID      int64  `json:"self_id"`
	RawMessage  string `json:"raw_message"`
}

// Server 接收 OneBot 事件上报并通过快速操作回复。
type Server struct {
	handler *Handler
	// resolveBot 把上报方的 self_id 映射为配置里的机器人实例 ID，
	// 单实例部署时可为 nil，此时直接使用 self_id。
	resolveBot func(selfID string) string
	logger     *log.Logger
}

// NewServer 创建事件上报服务。
func NewServer(handler *Handler, resolveBot func(string) string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{handler: handler, resolveBot: resolveBot, logger: logger}
}

// Routes 返回 HTTP 路由。
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/onebot", s.handleEvent)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleEvent 处理一条事件上报。命中命令时通过响应体的快速操作
// 字段回复，未命中或非消息事件返回空对象。
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.logger.Printf("[server] decode event failed: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if ev.PostType != "message" || ev.UserID == 0 {
		w.Write([]byte("{}"))
		return
	}

	botID := strconv.FormatInt(ev.SelfID, 10)
	if s.resolveBot != nil {
		botID = s.resolveBot(botID)
	}

	msg := Message{
		UserID: strconv.FormatInt(ev.UserID, 10),
		BotID:  botID,
		Text:   ev.RawMessage,
	}
	if ev.MessageType == "group" && ev.GroupID != 0 {
		msg.GroupID = strconv.FormatInt(ev.GroupID, 10)
	}

	reply := s.handler.Handle(r.Context(), msg)
	if reply == nil {
		w.Write([]byte("{}"))
		return
	}

	text := reply.Text
	if len(reply.ImagePNG) > 0 {
		text = fmt.Sprintf("[CQ:image,file=base64://%s]",
			base64.StdEncoding.EncodeToString(reply.ImagePNG))
	}
	json.NewEncoder(w).Encode(map[string]string{"reply": text})
}
