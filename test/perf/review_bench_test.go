package perf

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jeryldev/patingin/internal/parser"
	"github.com/jeryldev/patingin/internal/review"
	"github.com/jeryldev/patingin/internal/rules"
	"github.com/jeryldev/patingin/internal/rulesdsl"
)

const benchHunk = `diff --git a/lib/m%[1]d.ex b/lib/m%[1]d.ex
--- a/lib/m%[1]d.ex
+++ b/lib/m%[1]d.ex
@@ -1,3 +1,6 @@
 defmodule M%[1]d do
   def run(params) do
+    IO.inspect(params)
+    String.to_atom(params["k"])
+    Repo.query("SELECT * FROM t WHERE id = #{params["id"]}")
   end
diff --git a/web/a%[1]d.js b/web/a%[1]d.js
--- a/web/a%[1]d.js
+++ b/web/a%[1]d.js
@@ -1,2 +1,4 @@
 const x = 1;
+if (x == 2) { console.log(x); }
+var y = eval(x);
 export default x;
`

func benchDiff(files int) string {
	var b strings.Builder
	for i := 0; i < files; i++ {
		fmt.Fprintf(&b, benchHunk, i)
	}
	return b.String()
}

func benchEngine(b *testing.B) *review.Engine {
	b.Helper()
	builtin, errs := rulesdsl.Builtin()
	if len(errs) > 0 {
		b.Fatal(errs)
	}
	reg, errs := rules.Build(builtin, nil)
	if len(errs) > 0 {
		b.Fatal(errs)
	}
	return review.New(reg, review.Options{Settings: rules.DefaultSettings(), Workers: 4})
}

func BenchmarkReview_Small(b *testing.B) {
	e := benchEngine(b)
	in := review.Input{Diff: benchDiff(5)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		run, err := e.Review(context.Background(), in)
		if err != nil {
			b.Fatal(err)
		}
		if len(run.Violations) == 0 {
			b.Fatal("no violations found")
		}
	}
}

func BenchmarkParse_Large(b *testing.B) {
	diff := benchDiff(200)
	b.SetBytes(int64(len(diff)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		files, _ := parser.Parse(diff)
		if len(files) != 400 {
			b.Fatalf("parsed %d files", len(files))
		}
	}
}
