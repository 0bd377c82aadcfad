package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/as/log"
)

var (
	agent  = flag.String("A", "", "user agent")
	header = flag.String("H", "", "http header with colon seperated value (like curl)")
	acl    = flag.String("acl", "", "apply this acl to the destination, e.g.: private, public-read, public-read-write, aws-exec-read")

	serve   = flag.String("serve", "", "serve playback handles on this address (e.g. :8080)")
	base    = flag.String("base", "", "public url prefix for handles (default: http://<serve addr>/blob)")
	sniff   = flag.Bool("sniff", false, "print the resolved media type of each source and exit")
	maxhttp = flag.Int("maxhttp", 48, "global max http connections allowed")

	recurse = flag.Bool("r", false, "assume input is a directory and attempt recursion")

	dry      = flag.Bool("dry", false, "print (and unroll) rewrap commands only; no I/O ops")
	quiet    = flag.Bool("q", false, "dont print any progress output")
	flaky    = flag.Bool("flaky", false, "treat i/o errors as non-fatal")
	debug    = flag.Bool("debug", false, "print debug logs")
	deadband = flag.Duration("deadband", 60*time.Second, "for copies, the non-cumulative duration of no io in the process (read+write) after which rewrap emits a fatal error (zero means no timeout)")

	ls        = flag.Bool("ls", false, "list the source files or dirs")
	rel       = flag.Bool("rel", false, "ls omits scheme and bucket")
	stdinlist = flag.Bool("l", false, "treat stdin as a list of sources instead of data")

	version = flag.Bool("v", false, "print version and exit")
)

var (
	errNotImplemented = errors.New("not yet implemented")
	errScheme         = errors.New("scheme not supported")
)

// Object is an open source along with the content type its origin declared.
type Object struct {
	io.ReadCloser
	Type string
}

type FS interface {
	List(string) ([]Info, error)
	Open(context.Context, string) (*Object, error)
	Create(ctx context.Context, file, kind string) (io.WriteCloser, error)
	Close() error
}

var driver = map[string]FS{
	"s3":    &S3{},
	"gs":    &GS{},
	"file":  &OS{},
	"http":  &HTTP{},
	"https": &HTTP{},
	"":      &OS{},
}

// statusOf maps a driver error onto an http-like status code, or zero.
func statusOf(err error) int {
	for _, fn := range []func(error) int{s3status, gsstatus, osstatus} {
		if n := fn(err); n != 0 {
			return n
		}
	}
	return 0
}

var killc = make(chan os.Signal, 2)

func init() {
	signal.Notify(killc, syscall.SIGINT, syscall.SIGTERM)
}

func closeAll() {
	for _, fs := range driver {
		fs.Close()
	}
}

// docp fetches src, then writes it to dst labelled with its resolved kind.
func docp(ctx context.Context, src, dst string, ec chan<- work) {
	dfs := driver[uri(dst).Scheme]

	res, err := Fetch(ctx, src)
	if err != nil {
		ec <- work{src: src, dst: dst, err: err}
		return
	}
	defer res.Body.Close()

	dfd, err := dfs.Create(ctx, dst, res.Kind)
	if err != nil {
		ec <- work{src: src, dst: dst, kind: res.Kind, err: fmt.Errorf("create dst: %s: %w", dst, err)}
		return
	}
	_, err = io.Copy(tx{dfd}, res.Reader())
	if cerr := dfd.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("copy dst: %s: %w", dst, cerr)
	}
	ec <- work{src: src, dst: dst, kind: res.Kind, err: err}
}

func list(src ...string) {
	var fatal error
	for _, src := range src {
		sfs := driver[uri(src).Scheme]
		if sfs == nil {
			log.Fatal.F("src: scheme not supported: %s", src)
		}
		dir, err := sfs.List(src)
		if err != nil {
			log.Error.F("list error: %q: %v", src, err)
			fatal = err
			continue
		}
		if *rel {
			for _, f := range dir {
				fmt.Printf("%d\t%s\n", f.Size, f.Path)
			}
		} else {
			for _, f := range dir {
				fmt.Printf("%d\t%s\n", f.Size, f.URL)
			}
		}
	}
	if fatal != nil {
		log.Fatal.Add("err", fatal).Printf("")
	}
}

// expand resolves src into the files it names, recursing when asked to.
func expand(src string) []Info {
	u := uri(src)
	if !*recurse && !strings.HasSuffix(u.Path, "/") {
		return []Info{{URL: &u}}
	}
	sfs := driver[u.Scheme]
	if sfs == nil {
		log.Fatal.F("src: scheme not supported: %s", src)
	}
	list, err := sfs.List(src)
	if err != nil {
		line := log.Error.Add("action", "list", "src", src, "err", err)
		if !*flaky {
			line.Fatal().Printf("")
		}
		line.Printf("list error")
		return []Info{{URL: &u}}
	}
	return list
}

// readList parses one source per line, optionally preceded by a size and
// a tab, which is what -ls prints.
func readList(r io.Reader) (list []Info) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		info := Info{}
		v := strings.Split(sc.Text(), "\t")
		if len(v) > 1 {
			info.Size, _ = strconv.Atoi(v[0])
			v[0] = v[1]
		}
		if v[0] == "" {
			continue
		}
		u := uri(v[0])
		info.URL = &u
		list = append(list, info)
	}
	return list
}

// sniffAll prints one line per source: resolved kind, detected format, source.
func sniffAll(ctx context.Context, src ...string) int {
	failed := 0
	for _, s := range src {
		for _, f := range expand(s) {
			res, err := Fetch(ctx, f.String())
			if err != nil {
				failed++
				continue
			}
			fmt.Printf("%s\t%s\t%s\n", res.Kind, res.Format, f.String())
			res.Body.Close()
		}
	}
	return failed
}

func main() {
	defer log.Trap()
	defer closeAll()

	configure()
	flag.Parse()
	if *version {
		fmt.Println(Version)
		os.Exit(0)
	}

	if *maxhttp <= 0 {
		log.Fatal.F("maxhttp must be positive: %d", *maxhttp)
	}
	sema = make(chan bool, *maxhttp)
	log.DebugOn = *debug
	ctx := context.Background()
	a := flag.Args()
	switch {
	case *serve != "":
		os.Exit(runServer(ctx, *serve, *base))
	case *ls:
		list(a...)
		os.Exit(0)
	case *sniff:
		os.Exit(sniffAll(ctx, a...))
	}

	if len(a) != 2 {
		log.Fatal.F("usage: rewrap src... dst")
	}
	if a[0] != "-" && driver[uri(a[0]).Scheme] == nil {
		log.Fatal.F("src: scheme not supported: %s", a[0])
	}
	if driver[uri(a[1]).Scheme] == nil {
		log.Fatal.F("dst: scheme not supported: %s", a[1])
	}

	var srcs []Info
	if a[0] == "-" && *stdinlist {
		srcs = readList(os.Stdin)
		a[0] = commonPrefix(srcs...)
		if len(srcs) == 1 {
			a[0] = path.Dir(a[0])
		}
	} else {
		srcs = expand(a[0])
	}

	ec := make(chan work)
	n := 0
	for _, src := range srcs {
		dst := src2dst(a[0], src.String(), a[1])
		if *dry {
			fmt.Printf("rewrap %q %q # %d\n", src, dst.String(), src.Size)
		} else {
			go docp(ctx, src.String(), dst.String(), ec)
			n++
		}
	}
	if *dry {
		os.Exit(0)
	}

	tick := time.NewTicker(time.Second).C
	stopmon := make(chan bool)
	fatal := make(chan string, 1)
	if *deadband != 0 {
		go monitor(stopmon, fatal, *deadband)
	}
	for i := 0; i < n; {
		select {
		case msg := <-fatal:
			log.Fatal.F("%s", msg)
		case sig := <-killc:
			log.Fatal.F("trapped signal: %s", sig)
		case w := <-ec:
			i++
			line := log.Error.Add("action", "copy", "src", w.src, "dst", w.dst, "kind", w.kind, "err", w.err)
			if w.err != nil {
				nerr++
				if *flaky {
					line.Printf("copy error: %s -> %s: %v", w.src, w.dst, w.err)
				} else {
					line.Fatal().F("copy error: %s -> %s: %v", w.src, w.dst, w.err)
				}
			}
		case <-tick:
			progress(i, n)
		}
	}
	close(stopmon)

	progress(n, n)
	if nerr != 0 {
		os.Exit(nerr)
	}
}

var nerr = 0
var procstart = time.Now()

func monitor(done chan bool, fatal chan string, deadband time.Duration) {
	lastn := int64(0)
	lastio := time.Now()
	exit := func() bool {
		select {
		case <-done:
			return true
		default:
		}
		return false
	}
	for !exit() {
		time.Sleep(time.Second)
		rx := atomic.LoadInt64(&iostat.rx)
		tx := atomic.LoadInt64(&iostat.tx)
		n := rx + tx
		if n > lastn {
			lastio = time.Now()
			lastn = n
			continue
		}
		if time.Since(lastio) < deadband || exit() {
			continue
		}
		fatal <- fmt.Sprintf("io error: pipeline stalled, no rx/tx for %s after %0.3f MiB of io", deadband, float64(n)/1024/1024)
		return
	}
}

func progress(done, total int) {
	rx := atomic.LoadInt64(&iostat.rx)
	tx := atomic.LoadInt64(&iostat.tx)
	dur := time.Since(procstart)
	bps := int64(0)
	if s := dur / time.Second; s > 0 {
		bps = tx / int64(s)
	}

	if !*quiet {
		log.Info.Add(
			"rx", rx,
			"tx", tx,
			"file.done", done,
			"file.total", total,
			"file.errors", nerr,
			"mbps", bps/(1024*1024),
			"uptime", dur.Seconds(),
		).Printf("")
	}
}

type work struct {
	err            error
	src, dst, kind string
}

func src2dst(prefix, src, dst string) url.URL {
	su := uri(src)
	du := uri(dst)
	su.Path = strings.TrimPrefix(su.Path, uri(prefix).Path)
	du.Path = path.Join(du.Path, su.Path)
	return du
}

type Info struct {
	// invariant: *url.URL is never nil
	*url.URL
	Size int
}

func uri(s string) url.URL {
	u, _ := url.Parse(s)
	if u == nil {
		return url.URL{}
	}
	return *u
}

func paths(file ...Info) (p []string) {
	for _, v := range file {
		p = append(p, v.Path)
	}
	return p
}

func commonPrefix(file ...Info) string {
	if len(file) == 0 {
		return ""
	}
	list := paths(file...)
	min := strings.Split(list[0], "/")
	for _, p := range list {
		if len(min) == 0 {
			break
		}
		a := strings.Split(p, "/")
		if len(a) < len(min) {
			a, min = min, a
		}
		n := 0
		for ; n < len(min) && min[n] == a[n]; n++ {
		}
		min = min[:n]
	}
	return path.Join(append([]string{"/"}, min...)...)
}
