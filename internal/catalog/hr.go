package catalog

import "github.com/simp-lee/hrdesk/internal/domain"

// Default returns the catalog of HR entities served by the dashboard.
func Default() *Catalog {
	c, err := New(
		Departments(),
		Roles(),
		Employees(),
		Documents(),
		AwardPrograms(),
		LeaveLedgers(),
		BoardMeetings(),
		ComplianceRecords(),
	)
	if err != nil {
		panic("catalog.Default: " + err.Error())
	}
	return c
}

func Departments() domain.Entity {
	return domain.NewEntity("departments").
		PageSize(10).
		Field(domain.Field{Name: "name", Type: domain.FieldString, Required: true, Rules: "max=100"}).
		Field(domain.Field{Name: "code", Type: domain.FieldString, Required: true, Rules: "alphanum,max=16"}).
		Field(domain.Field{Name: "description", Type: domain.FieldText}).
		Field(domain.Field{Name: "active", Type: domain.FieldBool, Filterable: true}).
		Column("name", "").
		Column("code", "").
		Column("description", "").
		Column("active", "").
		MustBuild()
}

func Roles() domain.Entity {
	return domain.NewEntity("roles").
		PageSize(10).
		Field(domain.Field{Name: "title", Type: domain.FieldString, Required: true, Rules: "max=100"}).
		Field(domain.Field{Name: "department", Type: domain.FieldString, Ref: "departments", Filterable: true}).
		Field(domain.Field{Name: "grade", Type: domain.FieldEnum, Options: []string{"junior", "mid", "senior", "lead"}, Filterable: true}).
		Field(domain.Field{Name: "description", Type: domain.FieldText}).
		Column("title", "").
		Column("grade", "").
		Column("description", "").
		MustBuild()
}

func Employees() domain.Entity {
	return domain.NewEntity("employees").
		PageSize(10).
		Field(domain.Field{Name: "fullName", Label: "Full name", Type: domain.FieldString, Required: true, Rules: "min=2,max=100"}).
		Field(domain.Field{Name: "email", Type: domain.FieldString, Required: true, Rules: "email"}).
		Field(domain.Field{Name: "department", Type: domain.FieldString, Ref: "departments", Filterable: true}).
		Field(domain.Field{Name: "role", Type: domain.FieldString, Ref: "roles"}).
		Field(domain.Field{Name: "status", Type: domain.FieldEnum, Options: []string{"active", "on-leave", "terminated"}, Filterable: true}).
		Field(domain.Field{Name: "hireDate", Type: domain.FieldDate, Required: true}).
		Field(domain.Field{Name: "salary", Type: domain.FieldNumber, Rules: "gte=0"}).
		Field(domain.Field{Name: "photo", Type: domain.FieldImage}).
		Column("id", "ID").
		Column("fullName", "Name").
		Column("email", "").
		Column("status", "").
		Column("hireDate", "Hired").
		MustBuild()
}

func Documents() domain.Entity {
	return domain.NewEntity("documents").
		PageSize(8).
		Field(domain.Field{Name: "title", Type: domain.FieldString, Required: true}).
		Field(domain.Field{Name: "category", Type: domain.FieldEnum, Options: []string{"policy", "contract", "handbook", "form"}, Filterable: true}).
		Field(domain.Field{Name: "description", Type: domain.FieldText}).
		Field(domain.Field{Name: "effectiveDate", Type: domain.FieldDate}).
		Field(domain.Field{Name: "file", Type: domain.FieldFile, Required: true}).
		Column("title", "").
		Column("category", "").
		Column("effectiveDate", "Effective").
		Column("description", "").
		MustBuild()
}

func AwardPrograms() domain.Entity {
	return domain.NewEntity("award-programs").
		PageSize(6).
		Field(domain.Field{Name: "name", Type: domain.FieldString, Required: true}).
		Field(domain.Field{Name: "description", Type: domain.FieldText}).
		Field(domain.Field{Name: "budget", Type: domain.FieldNumber, Rules: "gte=0"}).
		Field(domain.Field{Name: "startDate", Type: domain.FieldDate, Required: true}).
		Field(domain.Field{Name: "endDate", Type: domain.FieldDate}).
		Field(domain.Field{Name: "banner", Type: domain.FieldImage}).
		Column("name", "").
		Column("budget", "").
		Column("startDate", "Starts").
		Column("endDate", "Ends").
		MustBuild()
}

func LeaveLedgers() domain.Entity {
	return domain.NewEntity("leave-ledgers").
		PageSize(20).
		Field(domain.Field{Name: "employee", Type: domain.FieldString, Required: true, Ref: "employees", Filterable: true}).
		Field(domain.Field{Name: "leaveType", Type: domain.FieldEnum, Options: []string{"annual", "sick", "parental", "unpaid"}, Required: true, Filterable: true}).
		Field(domain.Field{Name: "days", Type: domain.FieldNumber, Required: true, Rules: "gt=0"}).
		Field(domain.Field{Name: "from", Type: domain.FieldDate, Required: true}).
		Field(domain.Field{Name: "to", Type: domain.FieldDate}).
		Field(domain.Field{Name: "approved", Type: domain.FieldBool}).
		Column("employee", "").
		Column("leaveType", "Type").
		Column("days", "").
		Column("from", "").
		Column("approved", "").
		MustBuild()
}

func BoardMeetings() domain.Entity {
	return domain.NewEntity("board-meetings").
		PageSize(5).
		Field(domain.Field{Name: "title", Type: domain.FieldString, Required: true}).
		Field(domain.Field{Name: "scheduledAt", Label: "Scheduled at", Type: domain.FieldDateTime, Required: true}).
		Field(domain.Field{Name: "location", Type: domain.FieldString}).
		Field(domain.Field{Name: "agenda", Type: domain.FieldText}).
		Field(domain.Field{Name: "minutes", Type: domain.FieldFile}).
		Column("title", "").
		Column("scheduledAt", "When").
		Column("location", "").
		MustBuild()
}

func ComplianceRecords() domain.Entity {
	return domain.NewEntity("compliance-records").
		PageSize(10).
		Field(domain.Field{Name: "regulation", Type: domain.FieldString, Required: true}).
		Field(domain.Field{Name: "owner", Type: domain.FieldString, Ref: "employees"}).
		Field(domain.Field{Name: "status", Type: domain.FieldEnum, Options: []string{"compliant", "pending", "breach"}, Required: true, Filterable: true}).
		Field(domain.Field{Name: "dueDate", Type: domain.FieldDate}).
		Field(domain.Field{Name: "notes", Type: domain.FieldText}).
		Field(domain.Field{Name: "evidence", Type: domain.FieldFile}).
		Column("regulation", "").
		Column("status", "").
		Column("dueDate", "Due").
		Column("notes", "").
		MustBuild()
}
