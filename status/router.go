// Package status serves a read-only HTTP view of the machine.
package status

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luma/brewd/journal"
	"github.com/luma/brewd/ledger"
	"github.com/luma/brewd/protocol"
	"github.com/luma/brewd/storage"
)

const (
	defaultBrewsLimit = 20
	maxBrewsLimit     = 500
)

// History lists recently decided orders. *journal.Journal satisfies it.
type History interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Options struct {
	Ledger *ledger.Ledger
	Store  storage.Store

	// Journal is optional, /brews answers 404 without it
	Journal History

	Debug bool
	Log   *zap.Logger
}

type machineView struct {
	WaterML       int       `json:"water_ml"`
	CupSlots      int       `json:"cup_slots"`
	NextAvailable time.Time `json:"next_available"`
	BusyFor       int       `json:"busy_for_seconds"`
}

func NewRouter(options Options) *gin.Engine {
	gin.DisableConsoleColor()
	if !options.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Logs all requests, like a combined access and error log, in UTC
	// RFC3339.
	r.Use(ginzap.GinzapWithConfig(options.Log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(options.Log, true))

	h := &handler{options: options}

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/machine", h.machine)
	r.GET("/flavors", h.flavors)
	r.GET("/status", h.status)
	r.GET("/status/:key", h.statusKey)
	r.GET("/updates", h.updates)
	r.GET("/brews", h.brews)

	return r
}

type handler struct {
	options Options
}

func (h *handler) machine(c *gin.Context) {
	state := h.options.Ledger.Snapshot()

	busy := 0
	if owed := time.Until(state.NextAvailable); owed > 0 {
		busy = int((owed + time.Second - 1) / time.Second)
	}

	c.JSON(http.StatusOK, machineView{
		WaterML:       state.WaterML,
		CupSlots:      state.CupSlots,
		NextAvailable: state.NextAvailable.UTC(),
		BusyFor:       busy,
	})
}

func (h *handler) flavors(c *gin.Context) {
	flavors := protocol.Flavors()
	names := make([]string, len(flavors))
	for i, flavor := range flavors {
		names[i] = flavor.String()
	}

	c.JSON(http.StatusOK, names)
}

func (h *handler) status(c *gin.Context) {
	doc, err := h.options.Store.Backup()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

func (h *handler) statusKey(c *gin.Context) {
	value, err := h.options.Store.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if value == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", value)
}

// updates streams store updates as server sent events until the client goes
// away.
func (h *handler) updates(c *gin.Context) {
	updates := h.options.Store.ListenToUpdates(c.Request.Context())

	c.Stream(func(w io.Writer) bool {
		update, ok := <-updates
		if !ok {
			return false
		}

		c.SSEvent(update.Key, string(update.Value))
		return true
	})
}

func (h *handler) brews(c *gin.Context) {
	if h.options.Journal == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	limit := defaultBrewsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}

		if n > maxBrewsLimit {
			n = maxBrewsLimit
		}
		limit = n
	}

	entries, err := h.options.Journal.Recent(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
