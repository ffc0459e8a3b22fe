package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/commune-hq/commune/dao/model"
	"github.com/commune-hq/commune/internal/payload"
	"github.com/commune-hq/commune/internal/resputil"
	"github.com/commune-hq/commune/internal/service"
	"github.com/commune-hq/commune/internal/util"
	"github.com/commune-hq/commune/pkg/chat"
	"github.com/commune-hq/commune/pkg/config"
	"github.com/commune-hq/commune/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewChatMgr)
}

type ChatMgr struct {
	name  string
	chats *service.ChatService
	hub   *chat.Hub
}

func NewChatMgr(conf *RegisterConfig) Manager {
	return &ChatMgr{
		name:  "chat",
		chats: conf.Chats,
		hub:   conf.Hub,
	}
}

func (mgr *ChatMgr) GetName() string { return mgr.name }

func (mgr *ChatMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ChatMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("chat/direct/:userID", mgr.OpenDirect)
	g.POST("chat/rooms", mgr.CreateRoom)
	g.GET("chat/rooms", mgr.ListRooms)
	g.POST("chat/rooms/:roomID/join", mgr.JoinRoom)
	g.POST("chat/rooms/:roomID/messages", mgr.PostMessage)
	g.GET("chat/rooms/:roomID/messages", mgr.ListMessages)
	g.GET("chat/rooms/:roomID/ws", mgr.Connect)
}

func (mgr *ChatMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	DirectURI struct {
		UserID uint `uri:"userID" binding:"required"`
	}
	RoomURI struct {
		RoomID uint `uri:"roomID" binding:"required"`
	}

	CreateRoomReq struct {
		CommunityID uint   `json:"communityID" binding:"required"`
		Name        string `json:"name" binding:"required,max=64"`
	}

	PostMessageReq struct {
		Content string `json:"content" binding:"required,max=4000"`
	}

	// ChatFrame is the JSON frame pushed to every live connection in a
	// room when a message arrives.
	ChatFrame struct {
		MessageID uint      `json:"messageId"`
		RoomID    uint      `json:"roomId"`
		SenderID  uint      `json:"senderId"`
		Content   string    `json:"content"`
		SentAt    time.Time `json:"sentAt"`
	}
)

// OpenDirect godoc
//
//	@Summary		Open a direct chat
//	@Description	Returns the one-to-one room with the given user, creating it on first use
//	@Tags			Chat
//	@Produce		json
//	@Security		Bearer
//	@Param			userID	path		int	true	"peer user id"
//	@Success		200		{object}	resputil.Response[model.ChatRoom]	"room"
//	@Failure		404		{object}	resputil.Response[any]	"user not found"
//	@Router			/v1/chat/direct/{userID} [post]
func (mgr *ChatMgr) OpenDirect(c *gin.Context) {
	var uri DirectURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	room, err := mgr.chats.DirectRoom(c, token.UserID, uri.UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, room)
}

// CreateRoom godoc
//
//	@Summary		Create a group chat room
//	@Description	Community members only; the creator joins immediately
//	@Tags			Chat
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			data	body		CreateRoomReq	true	"room"
//	@Success		200		{object}	resputil.Response[model.ChatRoom]	"created room"
//	@Router			/v1/chat/rooms [post]
func (mgr *ChatMgr) CreateRoom(c *gin.Context) {
	var req CreateRoomReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	room, err := mgr.chats.CreateGroupRoom(c, token.UserID, req.CommunityID, req.Name)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, room)
}

// ListRooms godoc
//
//	@Summary		List my chat rooms
//	@Tags			Chat
//	@Produce		json
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[[]model.ChatRoom]	"rooms"
//	@Router			/v1/chat/rooms [get]
func (mgr *ChatMgr) ListRooms(c *gin.Context) {
	token := util.GetToken(c)
	rooms, err := mgr.chats.ListRooms(c, token.UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, rooms)
}

// JoinRoom godoc
//
//	@Summary		Join a group room
//	@Description	Community members only; direct rooms cannot be joined
//	@Tags			Chat
//	@Produce		json
//	@Security		Bearer
//	@Param			roomID	path		int	true	"room id"
//	@Success		200		{object}	resputil.Response[any]	"joined"
//	@Failure		409		{object}	resputil.Response[any]	"already in this room"
//	@Router			/v1/chat/rooms/{roomID}/join [post]
func (mgr *ChatMgr) JoinRoom(c *gin.Context) {
	var uri RoomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.chats.JoinGroupRoom(c, token.UserID, uri.RoomID); err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, gin.H{})
}

// PostMessage godoc
//
//	@Summary		Send a message over HTTP
//	@Description	Persists the message and fans it out to live connections
//	@Tags			Chat
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			roomID	path		int	true	"room id"
//	@Param			data	body		PostMessageReq	true	"message"
//	@Success		200		{object}	resputil.Response[model.ChatMessage]	"stored message"
//	@Failure		404		{object}	resputil.Response[any]	"room not found"
//	@Router			/v1/chat/rooms/{roomID}/messages [post]
func (mgr *ChatMgr) PostMessage(c *gin.Context) {
	var uri RoomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req PostMessageReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	msg, err := mgr.chats.SaveMessage(c, token.UserID, uri.RoomID, req.Content)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	mgr.broadcast(msg)
	resputil.Success(c, msg)
}

// ListMessages godoc
//
//	@Summary		Read room history
//	@Description	Newest first; room members only
//	@Tags			Chat
//	@Produce		json
//	@Security		Bearer
//	@Param			roomID		path		int	true	"room id"
//	@Param			page_index	query		int	true	"0-based page"
//	@Param			page_size	query		int	true	"page size"
//	@Success		200			{object}	resputil.Response[payload.ListResp[model.ChatMessage]]	"messages"
//	@Router			/v1/chat/rooms/{roomID}/messages [get]
func (mgr *ChatMgr) ListMessages(c *gin.Context) {
	var uri RoomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var query payload.ListReqQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	offset, limit := payload.Window(*query.PageIndex, *query.PageSize)
	rows, count, err := mgr.chats.ListMessages(c, token.UserID, uri.RoomID, offset, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resputil.Success(c, payload.ListResp[model.ChatMessage]{Rows: rows, Count: count})
}

// Connect godoc
//
//	@Summary		Open a live chat connection
//	@Description	Upgrades to a websocket; inbound text frames are stored and broadcast to the room
//	@Tags			Chat
//	@Security		Bearer
//	@Param			roomID	path	int	true	"room id"
//	@Success		101
//	@Router			/v1/chat/rooms/{roomID}/ws [get]
func (mgr *ChatMgr) Connect(c *gin.Context) {
	var uri RoomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	token := util.GetToken(c)
	if err := mgr.chats.RequireRoomMember(c, token.UserID, uri.RoomID); err != nil {
		handleServiceError(c, err)
		return
	}

	upgrade := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	// Allow all origins in debug mode
	if config.IsDebugMode() {
		upgrade.CheckOrigin = func(_ *http.Request) bool {
			return true
		}
	}
	ws, err := upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	defer ws.Close()

	_, leave := mgr.hub.Join(uri.RoomID, token.UserID, ws)
	defer leave()

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		msg, err := mgr.chats.SaveMessage(c, token.UserID, uri.RoomID, string(data))
		if err != nil {
			logutils.Log.WithField("room", uri.RoomID).Warnf("drop inbound message: %v", err)
			continue
		}
		mgr.broadcast(msg)
	}
}

func (mgr *ChatMgr) broadcast(msg *model.ChatMessage) {
	frame, err := json.Marshal(ChatFrame{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		SentAt:    msg.CreatedAt,
	})
	if err != nil {
		return
	}
	mgr.hub.Broadcast(msg.RoomID, frame)
}
