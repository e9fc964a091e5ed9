package client

import (
	"bytes"
	"io/fs"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readScript(t *testing.T) string {
	t.Helper()
	data, err := fs.ReadFile(Assets(), Script)
	require.NoError(t, err)
	return string(data)
}

func TestAssetsServeScript(t *testing.T) {
	src := readScript(t)
	assert.Contains(t, src, "function show(el, args)")
	assert.Contains(t, src, "function hide(el, args)")
	assert.Contains(t, src, "clearTimeout(el._lvHide)")
}

// Runs the panel transition helpers under node with fake elements and a
// manual clock.
const transitionHarness = `
var window = {};
var queue = [];
var now = 0;
var seq = 0;
function setTimeout(fn, ms) {
  var id = ++seq;
  queue.push({ id: id, at: now + ms, fn: fn });
  return id;
}
function clearTimeout(id) {
  queue = queue.filter(function (t) { return t.id !== id; });
}
function advance(ms) {
  var end = now + ms;
  for (;;) {
    queue.sort(function (a, b) { return a.at - b.at; });
    if (!queue.length || queue[0].at > end) break;
    var t = queue.shift();
    now = t.at;
    t.fn();
  }
  now = end;
}
function panel(hidden) {
  return { hidden: hidden, style: {}, offsetWidth: 0 };
}
%s
var p1 = panel(false), p2 = panel(true);
%s
console.log(JSON.stringify([p1.hidden, p2.hidden]));
`

func runTransitions(t *testing.T, steps string) string {
	t.Helper()
	node, err := exec.LookPath("node")
	if err != nil {
		t.Skip("node not installed")
	}

	src := readScript(t)
	start := strings.Index(src, "  function reducedMotion()")
	end := strings.Index(src, "  // ---- live connection ----")
	require.True(t, start >= 0 && end > start, "transition helpers not found")

	script := strings.Replace(transitionHarness, "%s", src[start:end], 1)
	script = strings.Replace(script, "%s", steps, 1)

	cmd := exec.Command(node)
	cmd.Stdin = strings.NewReader(script)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Run(), stderr.String())
	return strings.TrimSpace(out.String())
}

func TestTransitions_QuickBackKeepsOnePanel(t *testing.T) {
	got := runTransitions(t, `
hide(p1, { time: 300 }); show(p2, { time: 300 });
advance(100);
hide(p2, { time: 300 }); show(p1, { time: 300 });
advance(600);
`)
	assert.Equal(t, "[false,true]", got)
}

func TestTransitions_InstantShowCancelsPendingHide(t *testing.T) {
	got := runTransitions(t, `
hide(p1, { time: 300 }); show(p2, { time: 300 });
advance(50);
hide(p2, {}); show(p1, {});
advance(1000);
`)
	assert.Equal(t, "[false,true]", got)
}

func TestTransitions_CompletedHide(t *testing.T) {
	got := runTransitions(t, `
hide(p1, { time: 300 }); show(p2, { time: 300 });
advance(300);
`)
	assert.Equal(t, "[true,false]", got)
}
