package middleware

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowHeaders = "Content-Type, Authorization, X-Requested-With"
	corsMaxAge       = "600"
)

// RouteLister 由 *gin.Engine 实现。
type RouteLister interface {
	Routes() gin.RoutesInfo
}

type corsPolicy struct {
	origins []string
	routes  RouteLister

	once    sync.Once
	methods string
}

// CORS 来源逗号分隔，* 表示全部；带凭据请求回显具体 Origin。
// Allow-Methods 取自已注册路由，首个请求时计算，此时路由已全部注册完毕。
func CORS(allowOrigin string, routes RouteLister) gin.HandlerFunc {
	p := &corsPolicy{origins: parseOrigins(allowOrigin), routes: routes}
	return p.handle
}

func (p *corsPolicy) allowMethods() string {
	p.once.Do(func() {
		seen := map[string]bool{http.MethodOptions: true}
		if p.routes != nil {
			for _, rt := range p.routes.Routes() {
				seen[rt.Method] = true
			}
		}
		methods := make([]string, 0, len(seen))
		for m := range seen {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		p.methods = strings.Join(methods, ", ")
	})
	return p.methods
}

func (p *corsPolicy) handle(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" && originAllowed(origin, p.origins) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
	}
	c.Writer.Header().Add("Vary", "Origin")

	if c.Request.Method != http.MethodOptions {
		c.Next()
		return
	}
	c.Header("Access-Control-Allow-Methods", p.allowMethods())
	c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
	c.Header("Access-Control-Max-Age", corsMaxAge)
	c.AbortWithStatus(http.StatusNoContent)
}

func parseOrigins(val string) []string {
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func originAllowed(origin string, allowed []string) bool {
	origin = strings.TrimRight(origin, "/")
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
