package utils

import (
	"net/http"
	"strings"
)

// SessionCookieName 是保存会话令牌的 Cookie 名称
const SessionCookieName = "session_id"

// SessionCookie 描述会话 Cookie 的属性
type SessionCookie struct {
	MaxAge int
	Secure bool
}

// Set 写入会话 Cookie
func (c SessionCookie) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   c.MaxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken 读取请求中的会话令牌，不存在时返回空串
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
