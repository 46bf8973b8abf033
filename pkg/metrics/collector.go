package metrics

import (
	"sort"
	"sync"
)

// Collector collects sir-codec metrics
type Collector struct {
	mu sync.RWMutex

	// Learner metrics
	capturesReceived uint64
	learnerLearning  bool

	// Pre-processing metrics
	preprocessOK     uint64
	preprocessFailed uint64
	framesCollapsed  uint64

	// Conversion metrics
	conversions      map[string]uint64 // key: output format ("sir,2", "sir,3", ...)
	sir4Fallbacks    uint64
	conversionErrors uint64

	// Library metrics
	commandsSaved uint64

	// Push clients
	activeClients map[string]bool
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		conversions:   make(map[string]uint64),
		activeClients: make(map[string]bool),
	}
}

// CaptureReceived records a raw capture read from the learner
func (c *Collector) CaptureReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capturesReceived++
}

// LearnerState records whether the learner is in learning mode
func (c *Collector) LearnerState(learning bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.learnerLearning = learning
}

// PreProcessed records a pre-processing run. equalFrames is the number of
// repeated frames collapsed into one.
func (c *Collector) PreProcessed(ok bool, equalFrames int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !ok {
		c.preprocessFailed++
		return
	}
	c.preprocessOK++
	if equalFrames > 1 {
		c.framesCollapsed += uint64(equalFrames - 1)
	}
}

// Converted records a successful conversion to format
func (c *Collector) Converted(format string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conversions[format]++
}

// Sir4Fallback records a sir,3 soft failure that fell back to sir,4
func (c *Collector) Sir4Fallback() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sir4Fallbacks++
}

// ConversionFailed records a conversion that returned an error
func (c *Collector) ConversionFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conversionErrors++
}

// CommandSaved records a command stored in the library
func (c *Collector) CommandSaved() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commandsSaved++
}

// ClientConnected records a websocket client connection
func (c *Collector) ClientConnected(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeClients[id] = true
}

// ClientDisconnected records a websocket client disconnection
func (c *Collector) ClientDisconnected(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.activeClients, id)
}

// Reset resets gauges (useful for testing)
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeClients = make(map[string]bool)
	c.learnerLearning = false
	// Counters are cumulative and stay
}

// Getters for metrics

// GetCapturesReceived returns total captures read from the learner
func (c *Collector) GetCapturesReceived() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capturesReceived
}

// IsLearning reports the last recorded learner state
func (c *Collector) IsLearning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.learnerLearning
}

// GetPreProcessed returns successful and failed pre-processing runs
func (c *Collector) GetPreProcessed() (ok, failed uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.preprocessOK, c.preprocessFailed
}

// GetFramesCollapsed returns the number of repeated frames removed
func (c *Collector) GetFramesCollapsed() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.framesCollapsed
}

// GetConversions returns conversions for one output format
func (c *Collector) GetConversions(format string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conversions[format]
}

// GetConversionFormats returns every output format seen, sorted
func (c *Collector) GetConversionFormats() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	formats := make([]string, 0, len(c.conversions))
	for f := range c.conversions {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// GetSir4Fallbacks returns total sir,3 to sir,4 fallbacks
func (c *Collector) GetSir4Fallbacks() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sir4Fallbacks
}

// GetConversionErrors returns total failed conversions
func (c *Collector) GetConversionErrors() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conversionErrors
}

// GetCommandsSaved returns total commands stored
func (c *Collector) GetCommandsSaved() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.commandsSaved
}

// GetActiveClients returns the number of connected websocket clients
func (c *Collector) GetActiveClients() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.activeClients)
}
