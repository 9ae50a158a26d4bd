package engine

type Context struct{}

func (c *Context) Yield()                      {}
func (c *Context) YieldFrames(n int)           {}
func (c *Context) YieldUntil(func() bool) bool { return true }
func (c *Context) Frame() int                  { return 0 }
