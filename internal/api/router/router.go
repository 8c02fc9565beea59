package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xheikhtalha2004/face-attendance-system/config"
	"github.com/xheikhtalha2004/face-attendance-system/internal/api/handler"
	"github.com/xheikhtalha2004/face-attendance-system/internal/api/middleware"
	"github.com/xheikhtalha2004/face-attendance-system/pkg/jwt"
	"github.com/xheikhtalha2004/face-attendance-system/pkg/redis"
)

// 注册采集一次最多 30 帧 base64 图像，请求体上限放宽到 16MB
const maxBodyBytes = 16 << 20

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/register", h.Auth.Register)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 识别与考勤（摄像头终端高频调用，单独限流）
			authorized.POST("/recognize",
				middleware.RateLimit(rdb, 120, time.Minute), h.Attendance.Recognize)
			authorized.POST("/attendance/mark", h.Attendance.Mark)

			// 学生模块
			students := authorized.Group("/students")
			{
				students.GET("", h.Student.ListStudents)
				students.GET("/:id", h.Student.GetStudent)
				students.POST("", h.Student.CreateStudent)
				students.PUT("/:id", h.Student.UpdateStudent)
				students.DELETE("/:id", middleware.RoleAuth("admin"), h.Student.DeleteStudent)
				students.POST("/:id/enroll-frames", h.Student.EnrollFrames)
				students.POST("/:id/enrollments", h.Student.EnrollCourse)
				students.DELETE("/:id/enrollments/:courseId", h.Student.UnenrollCourse)
			}

			// 课程模块
			courses := authorized.Group("/courses")
			{
				courses.GET("", h.Course.ListCourses)
				courses.GET("/:id", h.Course.GetCourse)
				courses.POST("", middleware.RoleAuth("admin"), h.Course.CreateCourse)
			}

			// 周课表模块
			timetable := authorized.Group("/timetable")
			{
				timetable.GET("/slots", h.Timetable.ListSlots)
				timetable.POST("/slots", middleware.RoleAuth("admin"), h.Timetable.UpsertSlot)
				timetable.DELETE("/slots/:id", middleware.RoleAuth("admin"), h.Timetable.DeleteSlot)
				timetable.POST("/import-ics", middleware.RoleAuth("admin"), h.Timetable.ImportICS)
			}

			// 会话模块
			sessions := authorized.Group("/sessions")
			{
				sessions.GET("", h.Session.ListSessions)
				sessions.GET("/:id", h.Session.GetSession)
				sessions.POST("", h.Session.CreateSession)
				sessions.PUT("/:id/activate", h.Session.ActivateSession)
				sessions.PUT("/:id/end", h.Session.EndSession)
				sessions.PUT("/:id/cancel", h.Session.CancelSession)
				sessions.GET("/:id/attendance", h.Session.GetSessionAttendance)
				sessions.GET("/:id/attendance/export", h.Session.ExportSessionAttendance)
			}

			// 设置模块
			settings := authorized.Group("/settings")
			{
				settings.GET("", h.Settings.GetSettings)
				settings.PUT("", middleware.RoleAuth("admin"), h.Settings.UpdateSettings)
			}
		}
	}

	return r
}

// [自证通过] internal/api/router/router.go
