package mcpserver

// White-box testing required: errResult, toKinds, asStringSlice, and asInt
// are unexported helpers that shape tool-call arguments and error payloads;
// they are not reachable through the public NewServer API.

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/perr"
)

func TestErrResult_CarriesKindInData(t *testing.T) {
	c := qt.New(t)

	res, err := errResult(perr.New(perr.NotFound, "memory %s not found", "abc"))
	c.Assert(err, qt.IsNil)
	c.Assert(res.IsError, qt.IsTrue)

	tc, ok := mcp.AsTextContent(res.Content[0])
	c.Assert(ok, qt.IsTrue)

	var body struct {
		Code int `json:"code"`
		Data struct {
			Kind string `json:"kind"`
		} `json:"data"`
	}
	c.Assert(json.Unmarshal([]byte(tc.Text), &body), qt.IsNil)
	c.Assert(body.Data.Kind, qt.Equals, string(perr.NotFound))
	c.Assert(body.Code, qt.Equals, errorCodes[perr.NotFound])
}

func TestToKinds_DropsUnrecognized(t *testing.T) {
	c := qt.New(t)

	got := toKinds([]string{"bug", "nonsense", "decision"})
	c.Assert(got, qt.DeepEquals, []models.Kind{models.KindBug, models.KindDecision})
}

func TestAsStringSlice_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Assert(asStringSlice([]any{"a", "b"}), qt.DeepEquals, []string{"a", "b"})
	c.Assert(asStringSlice("not a slice"), qt.IsNil)
	c.Assert(asStringSlice(nil), qt.IsNil)
}

func TestAsInt_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Assert(asInt(float64(5), 0), qt.Equals, 5)
	c.Assert(asInt(3, 0), qt.Equals, 3)
	c.Assert(asInt("nope", 7), qt.Equals, 7)
}
