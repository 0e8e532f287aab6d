package packmgr

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/openmined/remoteassets/internal/repository"
	slogGin "github.com/samber/slog-gin"
)

const packagesRoot = "/etc/packages"

type authorPackage struct {
	pkg  Package
	data []byte
}

// AuthorServer serves the package manager protocol over a local repository, standing in
// for the remote author instance.
type AuthorServer struct {
	repo     *repository.Repository
	user     string
	password string

	mu       sync.Mutex
	packages map[string]*authorPackage
	faults   map[string]int
	calls    map[string]int
}

func NewAuthorServer(repo *repository.Repository, user, password string) *AuthorServer {
	return &AuthorServer{
		repo:     repo,
		user:     user,
		password: password,
		packages: map[string]*authorPackage{},
		faults:   map[string]int{},
		calls:    map[string]int{},
	}
}

func (s *AuthorServer) Handler() http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	r.Use(slogGin.NewWithConfig(slog.Default().WithGroup("author"), slogGin.Config{
		DefaultLevel:     slog.LevelDebug,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
	}))
	r.Use(gin.Recovery())
	r.Use(gin.BasicAuth(gin.Accounts{s.user: s.password}))

	r.POST(EndpointExec, s.handleExec)
	r.POST(EndpointUpdate, s.handleUpdate)
	r.POST(EndpointService, s.handleService)
	r.GET("/content/*path", s.handleContent)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r.Handler()
}

// SetFault makes every call of op answer with status. A zero status clears the fault.
// Ops are create, configure, build, get, rm and fetch.
func (s *AuthorServer) SetFault(op string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.faults, op)
		return
	}
	s.faults[op] = status
}

// Calls returns how many times op was requested
func (s *AuthorServer) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// ResetCalls zeroes the call counters
func (s *AuthorServer) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.calls)
}

// Packages lists the ids of packages that exist on the server
func (s *AuthorServer) Packages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.packages))
	for _, p := range s.packages {
		ids = append(ids, p.pkg.ID())
	}
	slices.Sort(ids)
	return ids
}

// track counts the call and reports an injected fault, if any
func (s *AuthorServer) track(c *gin.Context, op string) bool {
	s.mu.Lock()
	s.calls[op]++
	status, faulty := s.faults[op]
	s.mu.Unlock()

	if faulty {
		c.String(status, http.StatusText(status))
		return true
	}
	return false
}

func packageKey(group, name string) string {
	return group + "/" + name
}

func (s *AuthorServer) handleExec(c *gin.Context) {
	if c.PostForm("cmd") != "create" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "msg": "unsupported command"})
		return
	}
	if s.track(c, "create") {
		return
	}

	name := c.PostForm("packageName")
	group := c.PostForm("groupName")
	version := c.PostForm("packageVersion")
	if name == "" || group == "" {
		c.JSON(http.StatusOK, gin.H{"success": false, "msg": "packageName and groupName are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := packageKey(group, name)
	if _, ok := s.packages[key]; ok {
		c.JSON(http.StatusOK, gin.H{"success": false, "msg": fmt.Sprintf("package %s already exists", key)})
		return
	}

	pkgPath := fmt.Sprintf("%s/%s/%s-%s.zip", packagesRoot, group, name, version)
	s.packages[key] = &authorPackage{pkg: Package{Name: name, Group: group, Version: version, Path: pkgPath}}

	slog.Debug("author package created", "path", pkgPath)
	c.JSON(http.StatusOK, gin.H{"success": true, "path": pkgPath, "msg": "Package created"})
}

func (s *AuthorServer) handleUpdate(c *gin.Context) {
	if s.track(c, "configure") {
		return
	}

	filter, err := ParseFilter(c.PostForm("filter"))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "msg": err.Error()})
		return
	}
	if _, err := filter.Compile(); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "msg": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ap, ok := s.packages[packageKey(c.PostForm("packageGroup"), c.PostForm("packageName"))]
	if !ok || ap.pkg.Path != c.PostForm("path") {
		c.JSON(http.StatusOK, gin.H{"success": false, "msg": "package not found"})
		return
	}

	ap.pkg.Description = c.PostForm("description")
	ap.pkg.Filter = filter
	c.JSON(http.StatusOK, gin.H{"success": true, "path": ap.pkg.Path, "msg": "Package updated"})
}

func (s *AuthorServer) handleService(c *gin.Context) {
	cmd := c.PostForm("cmd")
	switch cmd {
	case "build", "get", "rm":
	default:
		c.String(http.StatusBadRequest, "unsupported command")
		return
	}
	if s.track(c, cmd) {
		return
	}

	key := packageKey(c.PostForm("group"), c.PostForm("name"))

	s.mu.Lock()
	ap, ok := s.packages[key]
	var pkg Package
	if ok {
		pkg = ap.pkg
	}
	s.mu.Unlock()

	if !ok {
		c.String(http.StatusNotFound, "package not found")
		return
	}

	switch cmd {
	case "build":
		session := s.repo.Login(repository.AdminUser)
		defer session.Close()

		data, err := Export(c.Request.Context(), session, &pkg)
		if err != nil {
			slog.Error("author package build", "package", key, "error", err)
			c.String(http.StatusInternalServerError, err.Error())
			return
		}

		s.mu.Lock()
		ap.data = data
		s.mu.Unlock()
		c.String(http.StatusOK, "<crx><response><status code=\"200\">ok</status></response></crx>")

	case "get":
		s.mu.Lock()
		data := ap.data
		s.mu.Unlock()

		if data == nil {
			c.String(http.StatusConflict, "package not built")
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pkg.Name+"-"+pkg.Version+".zip"))
		c.Data(http.StatusOK, "application/zip", data)

	case "rm":
		s.mu.Lock()
		delete(s.packages, key)
		s.mu.Unlock()
		c.String(http.StatusOK, "<crx><response><status code=\"200\">ok</status></response></crx>")
	}
}

func (s *AuthorServer) handleContent(c *gin.Context) {
	if s.track(c, "fetch") {
		return
	}

	p := UnescapePath(strings.TrimSuffix(c.Request.URL.Path, "/"))

	session := s.repo.Login(repository.AdminUser)
	defer session.Close()

	n, err := session.Get(c.Request.Context(), p)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	if n == nil || !n.HasBinary() {
		c.String(http.StatusNotFound, "not found")
		return
	}

	data, err := session.Binary(c.Request.Context(), n)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, n.MimeType, data)
}
