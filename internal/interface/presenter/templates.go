package presenter

// messageTemplates holds one subject and one body per message family.
// Bodies are plain text; the mail relay wraps them in the campus layout.
const messageTemplates = `
{{define "welcome.subject"}}Welcome to {{.CourseName}}{{end}}
{{define "welcome.body"}}Welcome to {{.CourseName}}!
{{- if eq .Code "WELCpr00"}}

Our records do not show the prerequisite for this course yet. Until it is
cleared you will not be able to start the course. If you think this is a
mistake, please let us know.
{{- else if hasPrefix .Code "WELCst"}}

The first step is to open the course and complete the orientation.
{{- else if hasPrefix .Code "WELCus"}}

The first thing to do is pass the Entrance Exam. You can take it as many
times as you need.
{{- else if hasPrefix .Code "WELCsr"}}

You have passed the Entrance Exam, so the Skills Review is next.
{{- else}}

You have finished the Entrance Exam and the Skills Review, so you are ready
for Unit 1.
{{- end}}
{{- if .PastFirstDue}}

The Unit 1 Review Exam due date has already passed, but there is plenty of
time to catch up.
{{- end}}

{{template "help" .}}{{end}}

{{define "reminder.subject"}}{{.Objective}} due {{.DuePhrase}}{{end}}
{{define "reminder.body"}}This is a reminder that the {{.Objective}} in {{.CourseName}} is due {{.DuePhrase}}.
{{- if .Review}} Passing it by the end of that day earns the on-time points.{{end}}

{{template "help" .}}{{end}}

{{define "congrats.subject"}}Nice work in {{.CourseName}}{{end}}
{{define "congrats.body"}}Congratulations on finishing the Unit 3 Review Exam!
The Final Exam is due {{.DuePhrase}}.

{{template "help" .}}{{end}}

{{define "grade.subject"}}A higher grade is within reach{{end}}
{{define "grade.body"}}You have passed the {{.CourseName}} Final Exam with {{.Total}} of {{.MaxPossible}} points.
{{- if eq .Code "GRDBok00"}}
A few more points would raise your grade to an A.
{{- else if eq .Code "GRDCok00"}}
Retaking a unit exam or two could raise your grade to a B or even an A.
{{- else}}
Retaking a unit exam could raise your grade to a B.
{{- end}}

{{template "help" .}}{{end}}

{{define "late.subject"}}Checking in on {{.CourseName}}{{end}}
{{define "late.body"}}We noticed the {{.Objective}} in your {{.Ordinal}} course, {{.CourseName}}, is not done yet.
{{- if .Attempted}} Every attempt helps, and the questions will start to feel familiar.{{end}}
Getting it finished soon will keep you on track for the rest of the course.

{{template "help" .}}{{end}}

{{define "many_attempts.subject"}}Let's work through the {{.Objective}} together{{end}}
{{define "many_attempts.body"}}You have worked hard on the {{.Objective}} in {{.CourseName}}.
After this many tries it usually helps to talk a few problems through with
someone before trying again.

{{template "help" .}}{{end}}

{{define "prereq.subject"}}Prerequisite for {{.CourseName}}{{end}}
{{define "prereq.body"}}Our records still do not show the prerequisite for {{.CourseName}}.
Until it is cleared you cannot start the course. Please contact us if you
have already completed it.{{end}}

{{define "start.subject"}}Getting started in {{.CourseName}}{{end}}
{{define "start.body"}}You have not opened {{.CourseName}} yet. Starting now leaves you the most
time for each unit.

{{template "help" .}}{{end}}

{{define "final.subject"}}{{.CourseName}} Final Exam{{end}}
{{define "final.body"}}The Final Exam in {{.CourseName}} was due {{.DuePhrase}} and is not passed yet.
Finishing it is the last step for the course.

{{template "help" .}}{{end}}

{{define "points.subject"}}{{.CourseName}} points{{end}}
{{define "points.body"}}You have passed the Final Exam, but your total of {{.Total}} points is below
the {{.PassingScore}} needed to pass {{.CourseName}}. Retaking unit exams can
make up the difference.

{{template "help" .}}{{end}}

{{define "last_try.subject"}}One more chance at the {{.CourseName}} Final Exam{{end}}
{{define "last_try.body"}}
{{- if eq .Code "LASTfe00"}}The Final Exam due date has passed, but you can still take the exam
{{- else}}The Final Exam due date has passed, but you can still retake the exam
{{- end}}
{{- if gt .Tries 1}} up to {{.Tries}} times{{end}} through {{.DuePhrase}}.

{{template "help" .}}{{end}}

{{define "needs_contact.subject"}}Can we help with {{.CourseName}}?{{end}}
{{define "needs_contact.body"}}It has been a while since we have seen progress on the {{.Objective}} in
{{.CourseName}}. Please reply to this message so we can figure out the next
step together.{{end}}

{{define "locked_out.subject"}}{{.CourseName}} is locked{{end}}
{{define "locked_out.body"}}Because the Final Exam due date has passed, {{.CourseName}} is now locked
and cannot be completed this term.{{end}}

{{define "withdraw_advice.subject"}}Withdrawing from {{.CourseName}}{{end}}
{{define "withdraw_advice.body"}}You can still withdraw from {{.CourseName}} through {{.DuePhrase}}.
A withdrawal does not affect your grade point average.{{end}}

{{define "lockout_options.subject"}}Your options after {{.CourseName}}{{end}}
{{define "lockout_options.body"}}The withdrawal deadline has passed, but you can still register for
{{.CourseName}} again next term and continue with your other courses.{{end}}

{{define "help"}}
{{- if .InPerson}}Questions? Stop by the Learning Center during open hours.
{{- else}}Questions? Join an online help session from the course page.
{{- end}}{{end}}
`
