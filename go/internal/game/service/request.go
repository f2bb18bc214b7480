package service

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxBodyBytes = 1 << 16

// formRequest is a request body that can also arrive urlencoded
type formRequest interface {
	readForm(form url.Values)
}

type nameRequest struct {
	SeatKey string `json:"seatKey"`
	Name    string `json:"name"`
}

func (req *nameRequest) readForm(form url.Values) {
	req.SeatKey = form.Get("seatKey")
	req.Name = form.Get("name")
}

type dwellRequest struct {
	Room    string       `json:"room"`
	SeatKey string       `json:"seatKey"`
	Seconds claimSeconds `json:"seconds"`
}

func (req *dwellRequest) readForm(form url.Values) {
	req.Room = form.Get("room")
	req.SeatKey = form.Get("seatKey")
	req.Seconds = parseSeconds(form.Get("seconds"))
}

type quitRequest struct {
	Room    string `json:"room"`
	SeatKey string `json:"seatKey"`
}

func (req *quitRequest) readForm(form url.Values) {
	req.Room = form.Get("room")
	req.SeatKey = form.Get("seatKey")
}

// claimSeconds accepts a JSON number or a numeric string. Values that are
// neither decode as NaN, which the ledger counts as zero.
type claimSeconds float64

func (c *claimSeconds) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*c = claimSeconds(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = parseSeconds(s)
		return nil
	}
	*c = claimSeconds(math.NaN())
	return nil
}

func parseSeconds(s string) claimSeconds {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return claimSeconds(math.NaN())
	}
	return claimSeconds(n)
}

// decodeRequest reads a JSON or urlencoded body into v. An empty body leaves
// v zero-valued. It writes a 400 and returns false on malformed input.
func decodeRequest(w http.ResponseWriter, r *http.Request, v formRequest) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "Malformed request.")
			return false
		}
		v.readForm(r.PostForm)
		return true
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Malformed request.")
		return false
	}
	return true
}
