package models

// StudentStats summarises a student's activity.
type StudentStats struct {
	EnrolledClasses int          `json:"enrolled_classes"`
	TotalSpent      float64      `json:"total_spent"`
	PendingPayments int          `json:"pending_payments"`
	AttendanceRate  int          `json:"attendance_rate"`
	UpcomingClasses []Enrollment `json:"upcoming_classes"`
	RecentPayments  []Payment    `json:"recent_payments"`
}

// StudentDashboard is the student view.
type StudentDashboard struct {
	Role        UserRole     `json:"role"`
	User        CurrentUser  `json:"user"`
	Stats       StudentStats `json:"stats"`
	Enrollments []Enrollment `json:"enrollments"`
}

// ClassAttendance is the per-class attendance breakdown for instructors.
type ClassAttendance struct {
	ClassTitle     string `json:"class_title"`
	Enrolled       int    `json:"enrolled"`
	Attended       int    `json:"attended"`
	AttendanceRate int    `json:"attendance_rate"`
}

// InstructorStats summarises an instructor's classes.
type InstructorStats struct {
	TotalClasses      int                        `json:"total_classes"`
	TotalStudents     int                        `json:"total_students"`
	Revenue           float64                    `json:"revenue"`
	AverageClassSize  float64                    `json:"average_class_size"`
	AttendanceByClass map[string]ClassAttendance `json:"attendance_by_class"`
}

// InstructorDashboard is the instructor view.
type InstructorDashboard struct {
	Role    UserRole        `json:"role"`
	User    CurrentUser     `json:"user"`
	Stats   InstructorStats `json:"stats"`
	Classes []ClassOffering `json:"classes"`
}

// TopClass ranks a class by enrollment count.
type TopClass struct {
	Title       string `json:"title"`
	Enrollments int    `json:"enrollments"`
	Capacity    int    `json:"capacity"`
	Occupancy   int    `json:"occupancy"`
}

// ClassRevenue reports confirmed revenue attributed to one class.
type ClassRevenue struct {
	ClassID   string  `json:"class_id"`
	ClassName string  `json:"class_name"`
	Revenue   float64 `json:"revenue"`
}

// AdminStats summarises the whole studio.
type AdminStats struct {
	TotalClasses      int            `json:"total_classes"`
	TotalEnrollments  int            `json:"total_enrollments"`
	TotalStudents     int            `json:"total_students"`
	TotalInstructors  int            `json:"total_instructors"`
	TotalRevenue      float64        `json:"total_revenue"`
	PendingPayments   int            `json:"pending_payments"`
	ConfirmedPayments int            `json:"confirmed_payments"`
	ClassOccupancy    int            `json:"class_occupancy"`
	TopClasses        []TopClass     `json:"top_classes"`
	RevenueByClass    []ClassRevenue `json:"revenue_by_class"`
	PendingList       []Payment      `json:"pending_payments_list"`
}

// AdminDashboard is the admin view.
type AdminDashboard struct {
	Role        UserRole        `json:"role"`
	User        CurrentUser     `json:"user"`
	Stats       AdminStats      `json:"stats"`
	Classes     []ClassOffering `json:"classes"`
	Enrollments []Enrollment    `json:"enrollments"`
}
