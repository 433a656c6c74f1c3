// Package session keeps per-user session state, including the controller store
// that ferries widget messages and form state across the redirect that follows
// a targeted request.
package session

import (
	"encoding/json"
	"sync"
)

// Slot names one value kept for a widget instance.
type Slot string

const (
	SlotMessage        Slot = "message"
	SlotSuccessMessage Slot = "success-message"
	SlotWarningMessage Slot = "warning-message"
	SlotErrorMessage   Slot = "error-message"
	SlotRequestObject  Slot = "request-object"
	SlotSharedValues   Slot = "shared-value-map"
)

// Slots lists every slot in a stable order.
var Slots = []Slot{SlotMessage, SlotSuccessMessage, SlotWarningMessage, SlotErrorMessage, SlotRequestObject, SlotSharedValues}

// Entry is everything pending for one widget instance.
type Entry struct {
	Message       string
	Success       string
	Warning       string
	Error         string
	RequestObject any
	SharedValues  map[string]string
}

func (e Entry) Empty() bool {
	return e.Message == "" && e.Success == "" && e.Warning == "" && e.Error == "" &&
		e.RequestObject == nil && len(e.SharedValues) == 0
}

// Controller is the (widget instance id, slot) -> value store.
// Values are read once: Take removes what it returns.
// It is safe for concurrent use by overlapping requests of one session.
type Controller struct {
	mu      sync.Mutex
	entries map[string]map[Slot]any
}

func NewController() *Controller {
	return &Controller{entries: map[string]map[Slot]any{}}
}

// Put stores value for (id, slot). Nil values and empty strings clear the slot.
func (c *Controller) Put(id string, slot Slot, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if isBlank(value) {
		c.deleteLocked(id, slot)
		return
	}
	m := c.entries[id]
	if m == nil {
		m = map[Slot]any{}
		c.entries[id] = m
	}
	m[slot] = value
}

// Take returns and removes the value for (id, slot).
func (c *Controller) Take(id string, slot Slot) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.entries[id]
	v, ok := m[slot]
	if ok {
		c.deleteLocked(id, slot)
	}
	return v, ok
}

// PutEntry stores every non-blank part of e under id.
func (c *Controller) PutEntry(id string, e Entry) {
	c.Put(id, SlotMessage, e.Message)
	c.Put(id, SlotSuccessMessage, e.Success)
	c.Put(id, SlotWarningMessage, e.Warning)
	c.Put(id, SlotErrorMessage, e.Error)
	c.Put(id, SlotRequestObject, e.RequestObject)
	if len(e.SharedValues) > 0 {
		cp := make(map[string]string, len(e.SharedValues))
		for k, v := range e.SharedValues {
			cp[k] = v
		}
		c.Put(id, SlotSharedValues, cp)
	} else {
		c.Put(id, SlotSharedValues, nil)
	}
}

// TakeAll returns and removes every slot for id in one step.
func (c *Controller) TakeAll(id string) Entry {
	c.mu.Lock()
	m := c.entries[id]
	delete(c.entries, id)
	c.mu.Unlock()

	var e Entry
	if m == nil {
		return e
	}
	e.Message, _ = m[SlotMessage].(string)
	e.Success, _ = m[SlotSuccessMessage].(string)
	e.Warning, _ = m[SlotWarningMessage].(string)
	e.Error, _ = m[SlotErrorMessage].(string)
	e.RequestObject = m[SlotRequestObject]
	e.SharedValues, _ = m[SlotSharedValues].(map[string]string)
	return e
}

// ClearAll drops every widget's pending values.
func (c *Controller) ClearAll() {
	c.mu.Lock()
	c.entries = map[string]map[Slot]any{}
	c.mu.Unlock()
}

// Len is the number of widget instances with pending values.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Controller) deleteLocked(id string, slot Slot) {
	m := c.entries[id]
	if m == nil {
		return
	}
	delete(m, slot)
	if len(m) == 0 {
		delete(c.entries, id)
	}
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]string:
		return t == nil
	}
	return false
}

// snapshot encodes pending values as JSON per slot.
func (c *Controller) snapshot() (map[string]map[Slot]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[Slot]json.RawMessage, len(c.entries))
	for id, m := range c.entries {
		enc := make(map[Slot]json.RawMessage, len(m))
		for slot, v := range m {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			enc[slot] = b
		}
		out[id] = enc
	}
	return out, nil
}

// restore replaces pending values from a snapshot. Request objects come back
// as generic JSON values (maps, slices, strings, numbers).
func (c *Controller) restore(in map[string]map[Slot]json.RawMessage) error {
	entries := make(map[string]map[Slot]any, len(in))
	for id, m := range in {
		dec := make(map[Slot]any, len(m))
		for slot, raw := range m {
			var v any
			var err error
			switch slot {
			case SlotSharedValues:
				var sv map[string]string
				err = json.Unmarshal(raw, &sv)
				v = sv
			case SlotRequestObject:
				err = json.Unmarshal(raw, &v)
			default:
				var s string
				err = json.Unmarshal(raw, &s)
				v = s
			}
			if err != nil {
				return err
			}
			dec[slot] = v
		}
		entries[id] = dec
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}
