// Package server exposes the feed aggregator as a JSON API.
package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/plutoid/plutoid/feed"
	"github.com/plutoid/plutoid/model"
	"github.com/plutoid/plutoid/server/middlewares"
	. "github.com/plutoid/plutoid/utils/log"
)

// ViewPublisher queues a view for asynchronous recording.
type ViewPublisher interface {
	Publish(viewerID string, postID string) error
}

type Handler struct {
	Aggregator *feed.Aggregator
	Views      ViewPublisher
	// Page size used when the client does not send one.
	DefaultPageSize int
}

func NewHandler(agg *feed.Aggregator, views ViewPublisher) *Handler {
	return &Handler{Aggregator: agg, Views: views, DefaultPageSize: 10}
}

// Register mounts every route on r. Viewer resolution must already be
// installed on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.GET("/feed", h.fetchFeed)
	r.GET("/posts/:id", h.getPost)
	r.GET("/posts/:id/comments", h.listComments)
	r.GET("/trending/hashtags", h.trending)
	r.GET("/hashtags/:tag/posts", h.postsByHashtag)
	r.GET("/search/posts", h.searchPosts)
	r.GET("/search/users", h.searchUsers)
	r.GET("/users/:uid", h.getUser)
	r.GET("/users/:uid/posts", h.userPosts)
	r.GET("/usernames/:userName", h.getUserByUserName)

	auth := r.Group("/", middlewares.RequireViewer())
	auth.POST("/posts", h.createPost)
	auth.POST("/posts/:id/like", h.toggleLike)
	auth.POST("/posts/:id/save", h.toggleSave)
	auth.POST("/posts/:id/comments", h.createComment)
	auth.POST("/posts/:id/views", h.recordView)
	auth.POST("/users", h.createUser)
	auth.GET("/me/saved", h.savedItems)
}

// pageArgs reads ?limit= and ?cursor=.
func (h *Handler) pageArgs(c *gin.Context) (int, string, bool) {
	size := h.DefaultPageSize
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			abortWithError(c, feed.ErrInvalidPageSize)
			return 0, "", false
		}
		size = n
	}
	return size, c.Query("cursor"), true
}

func (h *Handler) fetchFeed(c *gin.Context) {
	size, cursor, ok := h.pageArgs(c)
	if !ok {
		return
	}
	page, err := h.Aggregator.FetchFeedPage(c.Request.Context(), middlewares.ViewerID(c), size, cursor)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getPost(c *gin.Context) {
	viewer := middlewares.ViewerID(c)
	item, err := h.Aggregator.GetPost(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.publishView(viewer, item.Id)
	c.JSON(http.StatusOK, item)
}

func (h *Handler) publishView(viewer string, postID string) {
	if h.Views == nil {
		return
	}
	if err := h.Views.Publish(viewer, postID); err != nil {
		Log.WithError(err).WithField("post_id", postID).Warn("view not queued")
	}
}

func (h *Handler) recordView(c *gin.Context) {
	viewer := middlewares.ViewerID(c)
	postID := c.Param("id")
	if h.Views == nil {
		if err := h.Aggregator.RecordView(c.Request.Context(), viewer, postID); err != nil {
			abortWithError(c, err)
			return
		}
	} else {
		h.publishView(viewer, postID)
	}
	c.Status(http.StatusAccepted)
}

func (h *Handler) listComments(c *gin.Context) {
	comments, err := h.Aggregator.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": comments})
}

type createCommentRequest struct {
	TextComment string `json:"textComment"`
}

func (h *Handler) createComment(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errBadBody)
		return
	}
	comment, err := h.Aggregator.CreateComment(c.Request.Context(), middlewares.ViewerID(c), c.Param("id"), req.TextComment)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) toggleLike(c *gin.Context) {
	state, err := h.Aggregator.ToggleLike(c.Request.Context(), middlewares.ViewerID(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) toggleSave(c *gin.Context) {
	state, err := h.Aggregator.ToggleSave(c.Request.Context(), middlewares.ViewerID(c), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) createPost(c *gin.Context) {
	var input model.NewPostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, errBadBody)
		return
	}
	post, err := h.Aggregator.CreatePost(c.Request.Context(), middlewares.ViewerID(c), input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) trending(c *gin.Context) {
	n, _ := strconv.Atoi(c.Query("n"))
	tags, err := h.Aggregator.TrendingHashtags(c.Request.Context(), n, feed.RankBy(c.Query("rank")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": tags})
}

func (h *Handler) postsByHashtag(c *gin.Context) {
	size, cursor, ok := h.pageArgs(c)
	if !ok {
		return
	}
	page, err := h.Aggregator.GetPostsByHashtag(c.Request.Context(), middlewares.ViewerID(c), c.Param("tag"), size, cursor)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) searchPosts(c *gin.Context) {
	size, cursor, ok := h.pageArgs(c)
	if !ok {
		return
	}
	page, err := h.Aggregator.SearchPosts(c.Request.Context(), middlewares.ViewerID(c), c.Query("q"), size, cursor)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) searchUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	users, err := h.Aggregator.SearchUsers(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users})
}

func (h *Handler) getUser(c *gin.Context) {
	u, err := h.Aggregator.GetUser(c.Request.Context(), c.Param("uid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) getUserByUserName(c *gin.Context) {
	u, err := h.Aggregator.GetUserByUserName(c.Request.Context(), c.Param("userName"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) userPosts(c *gin.Context) {
	size, cursor, ok := h.pageArgs(c)
	if !ok {
		return
	}
	page, err := h.Aggregator.GetUserPosts(c.Request.Context(), middlewares.ViewerID(c), c.Param("uid"), size, cursor)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) createUser(c *gin.Context) {
	var u model.User
	if err := c.ShouldBindJSON(&u); err != nil {
		abortWithError(c, errBadBody)
		return
	}
	// The uid always comes from the verified token.
	u.Uid = middlewares.ViewerID(c)
	created, err := h.Aggregator.CreateUser(c.Request.Context(), u)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) savedItems(c *gin.Context) {
	items, err := h.Aggregator.ListSavedItems(c.Request.Context(), middlewares.ViewerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
