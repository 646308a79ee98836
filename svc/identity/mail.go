package identity

const signInSubject = "Your sign-in link - Yishan & Yitong Wedding"

func signInText(link string) string {
	return "Hello,\n\nUse the link below to sign in to the Yishan & Yitong wedding website:\n\n" +
		link + "\n\nIf you did not request this email you can ignore it.\n"
}
