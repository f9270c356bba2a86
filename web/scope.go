package web

import (
	"errors"
	"maps"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/inject/di"
)

const scopeKey = "inject.scope"

// ErrNoScope 请求上没有作用域，通常是没有安装 Middleware
var ErrNoScope = errors.New("web: request scope not found")

// Middleware 为每个请求创建根作用域的子作用域，绑定 "ctx"（*gin.Context）、
// "request"（*http.Request）以及 scoped 中的请求级绑定。
// 子作用域在处理链结束后关闭，请求级资源随之释放。
func Middleware(root *di.Injector, scoped di.Bindings) gin.HandlerFunc {
	return func(c *gin.Context) {
		bindings := maps.Clone(scoped)
		if bindings == nil {
			bindings = make(di.Bindings, 2)
		}
		bindings["ctx"] = c
		bindings["request"] = c.Request

		scope := root.Sub(bindings)
		c.Set(scopeKey, scope)
		defer func() {
			if err := scope.CloseContext(c.Request.Context()); err != nil {
				_ = c.Error(err)
			}
		}()

		c.Next()
	}
}

// Scope 返回请求的作用域
func Scope(c *gin.Context) (*di.Injector, bool) {
	v, ok := c.Get(scopeKey)
	if !ok {
		return nil, false
	}
	scope, ok := v.(*di.Injector)
	return scope, ok
}

// Handle 把可注入函数适配为 gin.HandlerFunc，参数从请求作用域注入。
// 返回值写为 JSON；返回 nil 时为 204；出错时返回 500。
// 函数已经写入响应时不再处理返回值。
//
//	router.GET("/users/:id", web.Handle(di.Fn(func(c *gin.Context, repo *Repo) (*User, error) {
//		return repo.Find(c.Param("id"))
//	}, "ctx", "repo")))
func Handle(fn any) gin.HandlerFunc {
	f, ok := fn.(*di.Func)
	if !ok {
		f = di.Fn(fn)
	}

	return func(c *gin.Context) {
		scope, ok := Scope(c)
		if !ok {
			abort(c, ErrNoScope)
			return
		}

		result, err := scope.Call(f, nil)
		if err != nil {
			abort(c, err)
			return
		}
		if c.Writer.Written() {
			return
		}
		if result == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
